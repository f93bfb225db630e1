// Package livescan gates a continuous stream of camera detections so that a
// result on screen is not re-triggered by the same physical code.
package livescan

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/MeKo-Tech/qrscan/internal/scan"
)

// Event is one detection emitted by the camera stream.
type Event struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Gate admits at most one event until it is resumed.
type Gate struct {
	suspended atomic.Bool
	dropped   atomic.Int64
}

// NewGate returns an open gate.
func NewGate() *Gate { return &Gate{} }

// Offer accepts ev and suspends the gate, or rejects it while suspended.
func (g *Gate) Offer(ev Event) bool {
	if !g.suspended.CompareAndSwap(false, true) {
		g.dropped.Add(1)
		return false
	}
	slog.Debug("Live detection accepted", "type", ev.Type)
	return true
}

// Suspend stops admitting events. It reports whether the gate was open.
func (g *Gate) Suspend() bool { return g.suspended.CompareAndSwap(false, true) }

// Resume reopens the gate once the user dismisses the result.
func (g *Gate) Resume() { g.suspended.Store(false) }

// Suspended reports whether events are currently ignored.
func (g *Gate) Suspended() bool { return g.suspended.Load() }

// Dropped counts events rejected while suspended.
func (g *Gate) Dropped() int64 { return g.dropped.Load() }

// SuspendingNotifier suspends the gate whenever an image-scan notice is shown,
// then forwards the notice.
type SuspendingNotifier struct {
	Gate *Gate
	Next scan.Notifier
}

func (s SuspendingNotifier) Notify(ctx context.Context, n scan.Notice, o scan.Outcome) {
	if s.Gate != nil {
		s.Gate.Suspend()
	}
	if s.Next != nil {
		s.Next.Notify(ctx, n, o)
	}
}

// Notice is the message shown for an accepted live detection.
func (e Event) Notice() scan.Notice {
	return scan.Notice{
		Title:   "Scanned!",
		Message: fmt.Sprintf("Bar code with type %s and data %s has been scanned!", e.Type, e.Data),
	}
}
