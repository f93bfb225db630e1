// Package scan runs one cancellable normalize, decode and detect pipeline at
// a time and reports exactly one outcome per task.
package scan

import "fmt"

// State is a ScanTask lifecycle state. Transitions only move forward.
type State int32

const (
	StateCreated State = iota
	StateNormalizing
	StateDecoding
	StateDetecting
	StateSucceeded
	StateNotFound
	StateFailed
	StateCancelled
	StateTimedOut
)

var stateNames = [...]string{
	StateCreated:     "created",
	StateNormalizing: "normalizing",
	StateDecoding:    "decoding",
	StateDetecting:   "detecting",
	StateSucceeded:   "succeeded",
	StateNotFound:    "not_found",
	StateFailed:      "failed",
	StateCancelled:   "cancelled",
	StateTimedOut:    "timed_out",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether s is one of the five final states.
func (s State) Terminal() bool { return s >= StateSucceeded && s <= StateTimedOut }

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown scan state %q", b)
}
