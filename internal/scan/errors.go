package scan

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

var (
	// ErrBusy is returned by Start while another task is still running.
	ErrBusy = errors.New("a scan is already in progress")
	// ErrNotTerminal is returned when delivering a task that has not finished.
	ErrNotTerminal = errors.New("scan task has not reached a terminal state")
	// ErrPermissionDenied is the source acquisition refusal; no task is created.
	ErrPermissionDenied = source.ErrPermissionDenied
)

// ErrorKind classifies why a task Failed.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindNormalization
	ErrorKindDecode
	ErrorKindDetect
	ErrorKindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNormalization:
		return "normalization"
	case ErrorKindDecode:
		return "decode"
	case ErrorKindDetect:
		return "detect"
	case ErrorKindInternal:
		return "internal"
	default:
		return ""
	}
}

// StageError is the classified failure carried by a Failed task.
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Reason is a short human-readable cause for notices.
func (e *StageError) Reason() string {
	var de *codec.DecodeError
	var ne *normalize.Error
	switch {
	case errors.As(e.Err, &de):
		return "Image data could not be decoded (" + de.Kind.String() + ")."
	case errors.Is(e.Err, source.ErrPermissionDenied):
		return "Permission to read the image was denied."
	case errors.As(e.Err, &ne):
		if ne.Operation == "read" {
			return "Could not get image data."
		}
		return "The image could not be processed."
	case e.Kind == ErrorKindInternal:
		return "An internal error occurred."
	default:
		return "Detection failed."
	}
}

// classify tags a stage failure. Undecodable bytes are a decode failure even
// when the normalizer is the stage that found out.
func classify(kind ErrorKind, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	if kind == ErrorKindNormalization && codec.IsDecodeError(err) {
		kind = ErrorKindDecode
	}
	return &StageError{Kind: kind, Err: err}
}
