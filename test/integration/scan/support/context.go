package support

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/scan"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir string

	// Pipeline under test
	Config  scan.Config
	Stages  scan.Stages
	History *history.MemoryStore
	Orch    *scan.Orchestrator
	Handle  *scan.Handle
	slow    *slowDecoder

	// Input and outcome
	ImageName string
	ImageData []byte
	Outcome   scan.Outcome
	StartErr  error

	notices *noticeRecorder

	// CLI execution state
	LastOutput   string
	LastStderr   string
	LastError    error
	LastDuration time.Duration
}

// NewTestContext builds the default pipeline with an in-memory history.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "qrscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cfg := config.DefaultConfig()
	stages, err := cfg.BuildStages()
	if err != nil {
		return nil, fmt.Errorf("failed to build stages: %w", err)
	}

	return &TestContext{
		TempDir: tempDir,
		Config:  scan.DefaultConfig(),
		Stages:  stages,
		History: history.NewMemoryStore(0),
		notices: &noticeRecorder{},
	}, nil
}

// Cleanup cancels a running scan and removes the scenario's files.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.Handle != nil {
		testCtx.Handle.Cancel()
	}
	if testCtx.slow != nil {
		testCtx.slow.release()
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// orchestrator builds the orchestrator lazily so Given steps can still
// change its configuration.
func (testCtx *TestContext) orchestrator() *scan.Orchestrator {
	if testCtx.Orch == nil {
		sink := scan.NewSink(testCtx.notices, testCtx.History)
		testCtx.Orch = scan.NewOrchestrator(testCtx.Config, testCtx.Stages, sink)
	}
	return testCtx.Orch
}

// writeImage stores the current image in the scenario directory.
func (testCtx *TestContext) writeImage() (string, error) {
	path := filepath.Join(testCtx.TempDir, testCtx.ImageName)
	if err := os.WriteFile(path, testCtx.ImageData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write test image: %w", err)
	}
	return path, nil
}

type noticeRecorder struct {
	mu       sync.Mutex
	notices  []scan.Notice
	outcomes []scan.Outcome
}

func (r *noticeRecorder) Notify(_ context.Context, n scan.Notice, o scan.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	r.outcomes = append(r.outcomes, o)
}

func (r *noticeRecorder) snapshot() ([]scan.Notice, []scan.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scan.Notice(nil), r.notices...), append([]scan.Outcome(nil), r.outcomes...)
}

// slowDecoder delays the wrapped decoder without watching the context, like a
// platform decode that cannot be interrupted.
type slowDecoder struct {
	next     scan.Decoder
	delay    time.Duration
	entered  chan struct{}
	finished chan struct{}
	stop     chan struct{}
	once     sync.Once
}

func newSlowDecoder(next scan.Decoder, delay time.Duration) *slowDecoder {
	return &slowDecoder{
		next:     next,
		delay:    delay,
		entered:  make(chan struct{}),
		finished: make(chan struct{}),
		stop:     make(chan struct{}),
	}
}

func (d *slowDecoder) Decode(data []byte, declared codec.Format) (*codec.Pixels, error) {
	close(d.entered)
	defer close(d.finished)
	select {
	case <-time.After(d.delay):
	case <-d.stop:
	}
	return d.next.Decode(data, declared)
}

func (d *slowDecoder) release() {
	d.once.Do(func() { close(d.stop) })
}
