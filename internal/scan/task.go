package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/source"
	"github.com/google/uuid"
)

// Task is one scan invocation. Its state is shared between the stage runner,
// the timeout timer and any cancel caller; all terminal transitions go
// through finish so exactly one of them wins.
type Task struct {
	ID       string
	Source   source.Image
	Created  time.Time
	Deadline time.Time

	state     atomic.Int32
	cancelled atomic.Bool
	delivered atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	// released is closed once the task gives up the active slot.
	released chan struct{}
	// done is closed once the outcome is frozen.
	done chan struct{}
	out  chan Outcome

	mu         sync.Mutex
	timer      *time.Timer
	stopCaller func() bool
	result     *barcode.Result
	err        *StageError
	stages     []StageTiming
	finished   time.Time
	outcome    *Outcome
}

func newTask(src source.Image, timeout time.Duration) *Task {
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		ID:       uuid.NewString(),
		Source:   src,
		Created:  now,
		Deadline: now.Add(timeout),
		ctx:      ctx,
		cancel:   cancel,
		released: make(chan struct{}),
		done:     make(chan struct{}),
		out:      make(chan Outcome, 1),
	}
}

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Cancelled reports whether the cancel token has been set.
func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Context is cancelled when the task is cancelled, times out or finishes.
func (t *Task) Context() context.Context { return t.ctx }

// advance moves between two non-terminal states.
func (t *Task) advance(from, to State) bool {
	return t.state.CompareAndSwap(int32(from), int32(to))
}

// finish claims the single terminal transition. It returns false when another
// path already reached a terminal state.
func (t *Task) finish(to State) bool {
	for {
		cur := t.state.Load()
		if State(cur).Terminal() {
			return false
		}
		if t.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

// setToken sets the cancel token and cancels the stage context. The token is
// never cleared.
func (t *Task) setToken() {
	t.cancelled.Store(true)
	t.cancel()
}

func (t *Task) markDelivered() bool { return t.delivered.CompareAndSwap(false, true) }

func (t *Task) recordStage(st StageTiming) {
	t.mu.Lock()
	t.stages = append(t.stages, st)
	t.mu.Unlock()
}

func (t *Task) setResult(res *barcode.Result) {
	t.mu.Lock()
	t.result = res
	t.mu.Unlock()
}

func (t *Task) setErr(err *StageError) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

// arm installs the timeout timer and caller-context hook unless the task has
// already finished.
func (t *Task) arm(timeout time.Duration, onTimeout func(), caller context.Context, onCaller func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.State().Terminal() {
		return
	}
	t.timer = time.AfterFunc(timeout, onTimeout)
	if caller != nil && caller.Done() != nil {
		t.stopCaller = context.AfterFunc(caller, onCaller)
	}
}

// disarm stops the timer and caller hook; called by the terminal winner.
func (t *Task) disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.stopCaller != nil {
		t.stopCaller()
	}
}

// freeze builds the final outcome once; later calls return the same record.
func (t *Task) freeze() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcome == nil {
		t.finished = time.Now()
		out := t.buildLocked()
		t.outcome = &out
	}
	return *t.outcome
}

// Outcome returns the final outcome, or a snapshot of progress while running.
func (t *Task) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcome != nil {
		return *t.outcome
	}
	return t.buildLocked()
}

// Done is closed once the outcome is final.
func (t *Task) Done() <-chan struct{} { return t.done }
