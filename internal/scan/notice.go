package scan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Notice is the user-facing message for an outcome.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (n Notice) String() string {
	if n.Message == "" {
		return n.Title
	}
	return n.Title + " " + n.Message
}

// NoticeFor returns the notice shown for an outcome. Cancelled tasks and
// unfinished tasks are silent.
func NoticeFor(o Outcome) (Notice, bool) {
	switch o.Status {
	case StateSucceeded:
		return Notice{Title: "Scanned from Image!", Message: o.Payload}, true
	case StateNotFound:
		return Notice{Title: "No QR Code Found", Message: "Could not detect a QR code in this image."}, true
	case StateFailed:
		msg := "Failed to scan image."
		if o.ErrorReason != "" {
			msg += " " + o.ErrorReason
		}
		return Notice{Title: "Error", Message: msg}, true
	case StateTimedOut:
		return Notice{
			Title:   "Scan timed out",
			Message: "Scanning took too long. Try a smaller or clearer image.",
		}, true
	default:
		return Notice{}, false
	}
}

// PermissionNotice is shown when the image could not be acquired.
func PermissionNotice() Notice {
	return Notice{Title: "Permission needed", Message: "Allow access to your photos to scan a QR code from an image."}
}

// Notifier presents notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice, o Outcome)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice, o Outcome)

func (f NotifierFunc) Notify(ctx context.Context, n Notice, o Outcome) { f(ctx, n, o) }

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notice, o Outcome) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if o.Status == StateFailed || o.Status == StateTimedOut {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, n.Title, "message", n.Message, "task_id", o.TaskID, "status", o.Status.String())
}

// WriterNotifier prints notices as plain lines, for terminals.
type WriterNotifier struct {
	mu sync.Mutex
	W  io.Writer
}

func (w *WriterNotifier) Notify(_ context.Context, n Notice, _ Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintln(w.W, n.String())
}

// MultiNotifier fans a notice out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notice, o Outcome) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(ctx, n, o)
		}
	}
}
