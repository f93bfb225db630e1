package codec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when there are no bytes to decode.
var ErrEmptyInput = errors.New("empty input")

// ErrorKind distinguishes why no format could decode the input.
type ErrorKind int

const (
	// KindUnknownFormat means no known container signature was found and nothing decoded.
	KindUnknownFormat ErrorKind = iota + 1
	// KindCorrupt means a supported format was declared or detected but its data is unreadable.
	KindCorrupt
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnknownFormat:
		return "unknown format"
	case KindCorrupt:
		return "unsupported or corrupt data"
	default:
		return "decode failure"
	}
}

// DecodeError reports that none of the candidate formats decoded the bytes.
type DecodeError struct {
	Kind  ErrorKind
	Tried []Format
	Err   error
}

func (e *DecodeError) Error() string {
	names := make([]string, len(e.Tried))
	for i, f := range e.Tried {
		names[i] = f.String()
	}
	if e.Err == nil {
		return fmt.Sprintf("decode error (%s), tried [%s]", e.Kind, strings.Join(names, ", "))
	}
	return fmt.Sprintf("decode error (%s), tried [%s]: %v", e.Kind, strings.Join(names, ", "), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err carries a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
