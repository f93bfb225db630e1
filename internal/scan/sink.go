package scan

import (
	"context"
	"log/slog"

	"github.com/MeKo-Tech/qrscan/internal/history"
)

// Sink delivers terminal tasks: it shows the notice and records successful
// scans in the history. Each task is delivered at most once.
type Sink struct {
	notifier Notifier
	history  history.Store
}

// NewSink builds a sink. Either argument may be nil.
func NewSink(n Notifier, store history.Store) *Sink {
	return &Sink{notifier: n, history: store}
}

// Deliver presents t's outcome. Repeat deliveries of the same task are no-ops.
func (s *Sink) Deliver(ctx context.Context, t *Task) error {
	if !t.State().Terminal() {
		return ErrNotTerminal
	}
	if !t.markDelivered() {
		return nil
	}
	out := t.Outcome()

	if s.notifier != nil && out.Notice != nil {
		s.notifier.Notify(ctx, *out.Notice, out)
	}

	if out.Status == StateSucceeded && s.history != nil {
		entry := history.NewEntry(out.CodeType, out.Payload)
		if err := s.history.Append(ctx, entry); err != nil {
			slog.Warn("Failed to record scan history", "task_id", out.TaskID, "error", err)
		}
	}
	return nil
}
