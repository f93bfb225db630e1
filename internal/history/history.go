// Package history records successful scans as an append-only list of
// entries kept under a single key.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultKey is the key the scan history is stored under.
const DefaultKey = "scan_history"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// Entry is one recorded scan.
type Entry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry stamps a fresh entry for a decoded payload.
func NewEntry(codeType, data string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Type:      codeType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Store is an ordered, append-only history.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns entries oldest first.
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string // memory, file, redis
	Path    string
	Key     string
	// MaxEntries caps retained entries; the oldest are dropped. Zero keeps everything.
	MaxEntries int
	RedisAddr  string
}

// Open builds the store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.MaxEntries < 0 {
		return nil, fmt.Errorf("max entries must be non-negative, got %d", opts.MaxEntries)
	}
	switch strings.ToLower(opts.Backend) {
	case "", "memory":
		return NewMemoryStore(opts.MaxEntries), nil
	case "file":
		return NewFileStore(opts.Path, opts.Key, opts.MaxEntries)
	case "redis":
		return NewRedisStore(ctx, NewRedisClient(opts.RedisAddr), opts.Key, opts.MaxEntries)
	default:
		return nil, fmt.Errorf("unknown history backend %q", opts.Backend)
	}
}

func trim(entries []Entry, max int) []Entry {
	if max > 0 && len(entries) > max {
		return entries[len(entries)-max:]
	}
	return entries
}
