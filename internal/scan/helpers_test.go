package scan

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
	"github.com/MeKo-Tech/qrscan/internal/source"
	"github.com/stretchr/testify/require"
)

type normalizerFunc func(ctx context.Context, src source.Image) (*normalize.Canonical, error)

func (f normalizerFunc) Normalize(ctx context.Context, src source.Image) (*normalize.Canonical, error) {
	return f(ctx, src)
}

type decoderFunc func(data []byte, declared codec.Format) (*codec.Pixels, error)

func (f decoderFunc) Decode(data []byte, declared codec.Format) (*codec.Pixels, error) {
	return f(data, declared)
}

type detectorFunc func(ctx context.Context, img image.Image) (*barcode.Result, error)

func (f detectorFunc) Detect(ctx context.Context, img image.Image) (*barcode.Result, error) {
	return f(ctx, img)
}

// fakePipeline is a controllable set of stages. Each stage blocks on its gate
// when one is set, ignoring the context like a non-preemptible decode.
type fakePipeline struct {
	normalizeGate chan struct{}
	decodeGate    chan struct{}
	detectGate    chan struct{}

	result    *barcode.Result
	detectErr error
	panicMsg  string

	normalizeCalls atomic.Int32
	decodeCalls    atomic.Int32
	detectCalls    atomic.Int32
	decodeEntered  chan struct{}
	decodeReturned chan struct{}
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		result:         &barcode.Result{Format: barcode.FormatQR, Text: "https://example.com", Kind: barcode.KindURL},
		decodeEntered:  make(chan struct{}, 1),
		decodeReturned: make(chan struct{}, 1),
	}
}

func wait(gate chan struct{}) {
	if gate != nil {
		<-gate
	}
}

func (f *fakePipeline) stages() Stages {
	return Stages{
		Normalizer: normalizerFunc(func(context.Context, source.Image) (*normalize.Canonical, error) {
			f.normalizeCalls.Add(1)
			wait(f.normalizeGate)
			return &normalize.Canonical{Data: []byte{0}, Format: codec.FormatPNG, Width: 1, Height: 1}, nil
		}),
		Decoder: decoderFunc(func([]byte, codec.Format) (*codec.Pixels, error) {
			f.decodeCalls.Add(1)
			select {
			case f.decodeEntered <- struct{}{}:
			default:
			}
			wait(f.decodeGate)
			select {
			case f.decodeReturned <- struct{}{}:
			default:
			}
			return &codec.Pixels{Width: 1, Height: 1, Stride: 4, Data: make([]byte, 4), Format: codec.FormatPNG}, nil
		}),
		Detector: detectorFunc(func(context.Context, image.Image) (*barcode.Result, error) {
			f.detectCalls.Add(1)
			wait(f.detectGate)
			if f.panicMsg != "" {
				panic(f.panicMsg)
			}
			return f.result, f.detectErr
		}),
	}
}

// recorder captures notices.
type recorder struct {
	mu      sync.Mutex
	notices []Notice
	status  []State
}

func (r *recorder) Notify(_ context.Context, n Notice, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	r.status = append(r.status, o.Status)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func (r *recorder) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

type harness struct {
	o       *Orchestrator
	rec     *recorder
	history *history.MemoryStore
}

func newHarness(t *testing.T, cfg Config, stages Stages) *harness {
	t.Helper()
	rec := &recorder{}
	store := history.NewMemoryStore(0)
	return &harness{
		o:       NewOrchestrator(cfg, stages, NewSink(rec, store)),
		rec:     rec,
		history: store,
	}
}

func (h *harness) entries(t *testing.T) []history.Entry {
	t.Helper()
	entries, err := h.history.List(context.Background())
	require.NoError(t, err)
	return entries
}

func memSource() source.Image {
	return source.FromBytes("upload.png", []byte{0}, codec.FormatPNG)
}

func awaitOutcome(t *testing.T, h *Handle) Outcome {
	t.Helper()
	select {
	case out := <-h.Done():
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not finish")
		return Outcome{}
	}
}

func defaultStages(t *testing.T) Stages {
	t.Helper()
	stages, err := NewStages(normalize.DefaultConfig(), codec.DefaultFallbackPolicy(), barcode.Options{TryHarder: true})
	require.NoError(t, err)
	return stages
}
