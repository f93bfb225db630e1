package batch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress updates during a batch run.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(current int, err error)
}

// NoOpProgressCallback discards all updates.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback redraws a single progress line on a terminal.
type ConsoleProgressCallback struct {
	mu       sync.Mutex
	out      io.Writer
	label    string
	barWidth int
	every    time.Duration
	started  time.Time
	drawn    time.Time
}

// NewConsoleProgressCallback writes to w, or stderr when w is nil.
func NewConsoleProgressCallback(w io.Writer, label string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{out: w, label: label, barWidth: 40, every: 100 * time.Millisecond}
}

// WithUpdateInterval throttles redraws; the final item is always drawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(d time.Duration) *ConsoleProgressCallback {
	c.every = d
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	c.drawn = time.Time{}
	_, _ = fmt.Fprintf(c.out, "%s0/%d (0.0%%)\n", c.label, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if total <= 0 || (current < total && now.Sub(c.drawn) < c.every) {
		return
	}
	c.drawn = now
	_, _ = fmt.Fprint(c.out, "\r"+c.line(current, total, now.Sub(c.started)))
}

// line renders "label[####....] current/total (pct%) ETA: d".
func (c *ConsoleProgressCallback) line(current, total int, elapsed time.Duration) string {
	done := c.barWidth * current / total
	var b strings.Builder
	b.WriteString(c.label)
	b.WriteByte('[')
	b.WriteString(strings.Repeat("█", done))
	b.WriteString(strings.Repeat("░", c.barWidth-done))
	fmt.Fprintf(&b, "] %d/%d (%.1f%%)", current, total, 100*float64(current)/float64(total))
	if current > 0 && current < total && elapsed > 0 {
		left := elapsed / time.Duration(current) * time.Duration(total-current)
		fmt.Fprintf(&b, " ETA: %v", left.Round(time.Second))
	}
	return b.String()
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "\n%sCompleted in %v\n", c.label, time.Since(c.started).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(current int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "\n%sitem %d: %v\n", c.label, current, err)
}

// LogProgressCallback reports progress through slog.
type LogProgressCallback struct {
	logger *slog.Logger
	every  int
}

// NewLogProgressCallback logs every n items; nil logger uses the default.
func NewLogProgressCallback(logger *slog.Logger, every int) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, every: max(1, every)}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.logger.Info("Batch scan started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	if current%l.every == 0 || current == total {
		l.logger.Info("Batch scan progress", "current", current, "total", total)
	}
}

func (l *LogProgressCallback) OnComplete() { l.logger.Info("Batch scan completed") }

func (l *LogProgressCallback) OnError(current int, err error) {
	l.logger.Error("Batch scan error", "current", current, "error", err)
}
