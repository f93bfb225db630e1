package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// DefaultTimeout bounds a task from creation to its terminal state.
const DefaultTimeout = 10 * time.Second

// DefaultDeliverWait bounds how long the outcome waits for the sink.
const DefaultDeliverWait = 2 * time.Second

// Config controls task lifetime and the busy policy.
type Config struct {
	Timeout time.Duration
	// Preempt cancels a running task instead of rejecting the new one.
	Preempt bool
	// DeliverWait is how long the outcome is held back for the sink to
	// finish. A slower sink keeps running but no longer delays the caller.
	DeliverWait time.Duration
}

// DefaultConfig returns a 10s timeout that rejects concurrent scans.
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout, DeliverWait: DefaultDeliverWait}
}

// Normalizer produces the canonical image bytes.
type Normalizer interface {
	Normalize(ctx context.Context, src source.Image) (*normalize.Canonical, error)
}

// Decoder turns container bytes into pixels.
type Decoder interface {
	Decode(data []byte, declared codec.Format) (*codec.Pixels, error)
}

// Detector finds a code in pixels; a nil result means none was found.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*barcode.Result, error)
}

// Stages are the three pipeline steps run in order.
type Stages struct {
	Normalizer Normalizer
	Decoder    Decoder
	Detector   Detector
}

// Orchestrator runs at most one scan task at a time.
type Orchestrator struct {
	cfg    Config
	stages Stages
	sink   *Sink
	active atomic.Pointer[Task]
}

// NewOrchestrator wires the stages to a sink. A nil sink discards outcomes.
func NewOrchestrator(cfg Config, stages Stages, sink *Sink) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DeliverWait <= 0 {
		cfg.DeliverWait = DefaultDeliverWait
	}
	if sink == nil {
		sink = NewSink(nil, nil)
	}
	return &Orchestrator{cfg: cfg, stages: stages, sink: sink}
}

// Handle follows a started task.
type Handle struct {
	o    *Orchestrator
	task *Task
}

// Done receives the task's outcome exactly once.
func (h *Handle) Done() <-chan Outcome { return h.task.out }

// Wait blocks until the task is terminal and returns its outcome.
func (h *Handle) Wait() Outcome {
	<-h.task.done
	return h.task.Outcome()
}

// Cancel requests cancellation; false means the task had already finished.
func (h *Handle) Cancel() bool { return h.o.conclude(h.task, StateCancelled) }

// Task returns the underlying task.
func (h *Handle) Task() *Task { return h.task }

// Active returns the running task, if any.
func (o *Orchestrator) Active() *Task { return o.active.Load() }

// Start creates a task for src and launches its pipeline. Cancelling ctx
// cancels the task; a ctx deadline expiring times it out.
func (o *Orchestrator) Start(ctx context.Context, src source.Image) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := newTask(src, o.cfg.Timeout)
	if err := o.claim(ctx, t); err != nil {
		t.cancel()
		return nil, err
	}
	activeScans.Inc()

	slog.Debug("Scan task created", "task_id", t.ID, "source", src.String(), "deadline", t.Deadline)

	t.arm(o.cfg.Timeout,
		func() { o.conclude(t, StateTimedOut) },
		ctx,
		func() {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				o.conclude(t, StateTimedOut)
				return
			}
			o.conclude(t, StateCancelled)
		},
	)
	go o.run(t)
	return &Handle{o: o, task: t}, nil
}

// Run starts a task and waits for its outcome.
func (o *Orchestrator) Run(ctx context.Context, src source.Image) (Outcome, error) {
	h, err := o.Start(ctx, src)
	if err != nil {
		return Outcome{}, err
	}
	return <-h.Done(), nil
}

// Cancel cancels the active task. It returns false when nothing was running
// or the task finished first.
func (o *Orchestrator) Cancel() bool {
	t := o.active.Load()
	if t == nil {
		return false
	}
	return o.conclude(t, StateCancelled)
}

func (o *Orchestrator) claim(ctx context.Context, t *Task) error {
	for {
		if o.active.CompareAndSwap(nil, t) {
			return nil
		}
		prev := o.active.Load()
		if prev == nil {
			continue
		}
		if !o.cfg.Preempt {
			return ErrBusy
		}
		slog.Debug("Preempting running scan", "task_id", prev.ID)
		o.conclude(prev, StateCancelled)
		select {
		case <-prev.released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// conclude attempts the terminal transition to `to`. Only the winner releases
// the slot, delivers to the sink and publishes the outcome.
func (o *Orchestrator) conclude(t *Task, to State) bool {
	if !t.finish(to) {
		return false
	}
	if to == StateCancelled || to == StateTimedOut {
		t.setToken()
	} else {
		t.cancel()
	}
	t.disarm()

	o.active.CompareAndSwap(t, nil)
	close(t.released)
	activeScans.Dec()

	out := t.freeze()
	scansTotal.WithLabelValues(out.Status.String()).Inc()
	slog.Info("Scan finished", "task_id", t.ID, "status", out.Status.String(), "duration_ms", out.DurationMS)

	o.deliver(t)
	close(t.done)
	t.out <- out
	close(t.out)
	return true
}

// deliver hands t to the sink, waiting at most DeliverWait so a stalled
// notifier cannot keep the outcome from the caller.
func (o *Orchestrator) deliver(t *Task) {
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Result sink panicked", "task_id", t.ID, "panic", r)
			}
		}()
		if err := o.sink.Deliver(context.WithoutCancel(t.ctx), t); err != nil {
			slog.Warn("Failed to deliver scan outcome", "task_id", t.ID, "error", err)
		}
	}()

	wait := time.NewTimer(o.cfg.DeliverWait)
	defer wait.Stop()
	select {
	case <-delivered:
	case <-wait.C:
		slog.Warn("Result delivery is slow, publishing outcome", "task_id", t.ID, "wait", o.cfg.DeliverWait.String())
	}
}

// enter moves the runner into the next stage unless the task was cancelled
// or already finished elsewhere.
func (o *Orchestrator) enter(t *Task, from, to State) bool {
	if t.Cancelled() {
		o.conclude(t, StateCancelled)
		return false
	}
	if !t.advance(from, to) {
		return false
	}
	slog.Debug("Scan stage", "task_id", t.ID, "state", to.String())
	return true
}

func (o *Orchestrator) fail(t *Task, kind ErrorKind, err error) {
	if t.State().Terminal() {
		return
	}
	t.setErr(classify(kind, err))
	o.conclude(t, StateFailed)
}

func (o *Orchestrator) run(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Scan stage panicked", "task_id", t.ID, "panic", r)
			o.fail(t, ErrorKindInternal, fmt.Errorf("panic: %v", r))
		}
	}()

	if !o.enter(t, StateCreated, StateNormalizing) {
		return
	}
	timer := startStage(StageNormalize)
	canon, err := o.stages.Normalizer.Normalize(t.ctx, t.Source)
	t.recordStage(timer.stop())
	if err != nil {
		o.fail(t, ErrorKindNormalization, err)
		return
	}

	if !o.enter(t, StateNormalizing, StateDecoding) {
		return
	}
	timer = startStage(StageDecode)
	px, err := o.stages.Decoder.Decode(canon.Data, canon.Format)
	t.recordStage(timer.stop())
	if err != nil {
		o.fail(t, ErrorKindDecode, err)
		return
	}

	if !o.enter(t, StateDecoding, StateDetecting) {
		return
	}
	timer = startStage(StageDetect)
	res, err := o.stages.Detector.Detect(t.ctx, px.Image())
	t.recordStage(timer.stop())
	if err != nil {
		o.fail(t, ErrorKindDetect, err)
		return
	}
	if res == nil {
		o.conclude(t, StateNotFound)
		return
	}
	t.setResult(res)
	o.conclude(t, StateSucceeded)
}
