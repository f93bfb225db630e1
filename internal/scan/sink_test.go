package scan

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedTask(t *testing.T, to State, res *barcode.Result) *Task {
	t.Helper()
	task := newTask(memSource(), DefaultTimeout)
	task.setResult(res)
	require.True(t, task.finish(to))
	task.freeze()
	return task
}

func TestSinkRejectsRunningTask(t *testing.T) {
	task := newTask(memSource(), DefaultTimeout)
	require.True(t, task.advance(StateCreated, StateNormalizing))
	assert.ErrorIs(t, NewSink(nil, nil).Deliver(context.Background(), task), ErrNotTerminal)
	assert.True(t, task.markDelivered(), "rejected delivery does not consume the task")
}

func TestSinkDeliversOnce(t *testing.T) {
	rec := &recorder{}
	store := history.NewMemoryStore(0)
	sink := NewSink(rec, store)
	task := finishedTask(t, StateSucceeded, &barcode.Result{Format: barcode.FormatQR, Text: "hello", Kind: barcode.KindText})

	require.NoError(t, sink.Deliver(context.Background(), task))
	require.NoError(t, sink.Deliver(context.Background(), task))

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, Notice{Title: "Scanned from Image!", Message: "hello"}, rec.last())
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Data)
	assert.NotEmpty(t, entries[0].ID)
}

func TestSinkOutcomeMapping(t *testing.T) {
	tests := []struct {
		state   State
		title   string
		history bool
	}{
		{StateSucceeded, "Scanned from Image!", true},
		{StateNotFound, "No QR Code Found", false},
		{StateFailed, "Error", false},
		{StateTimedOut, "Scan timed out", false},
		{StateCancelled, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			rec := &recorder{}
			store := history.NewMemoryStore(0)
			task := finishedTask(t, tt.state, &barcode.Result{Format: barcode.FormatQR, Text: "x"})

			require.NoError(t, NewSink(rec, store).Deliver(context.Background(), task))
			assert.Equal(t, tt.title, rec.last().Title)
			entries, _ := store.List(context.Background())
			assert.Equal(t, tt.history, len(entries) == 1)
		})
	}
}

type failingStore struct{ history.Store }

func (failingStore) Append(context.Context, history.Entry) error { return errors.New("disk full") }

func TestSinkHistoryFailureKeepsOutcome(t *testing.T) {
	rec := &recorder{}
	task := finishedTask(t, StateSucceeded, &barcode.Result{Format: barcode.FormatQR, Text: "x"})
	require.NoError(t, NewSink(rec, failingStore{}).Deliver(context.Background(), task))
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, StateSucceeded, task.State())
}

func TestNoticeFor(t *testing.T) {
	n, ok := NoticeFor(Outcome{Status: StateFailed, ErrorReason: "Could not get image data."})
	require.True(t, ok)
	assert.Equal(t, "Failed to scan image. Could not get image data.", n.Message)

	_, ok = NoticeFor(Outcome{Status: StateCancelled})
	assert.False(t, ok)
	_, ok = NoticeFor(Outcome{Status: StateDetecting})
	assert.False(t, ok)

	assert.Equal(t, "Permission needed", PermissionNotice().Title)
}

func TestWriterAndMultiNotifier(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	n := MultiNotifier{&WriterNotifier{W: &buf}, LogNotifier{}, rec, nil}
	n.Notify(context.Background(), Notice{Title: "No QR Code Found", Message: "Could not detect a QR code in this image."}, Outcome{Status: StateNotFound})

	assert.Equal(t, "No QR Code Found Could not detect a QR code in this image.\n", buf.String())
	assert.Equal(t, 1, rec.count())
}
