// Package source describes a picked image: a URI, an optional in-memory
// buffer and the container format the picker declared for it.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/MeKo-Tech/qrscan/internal/codec"
)

var (
	// ErrPermissionDenied means the image could not be acquired because access was refused.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoData means the reference carries neither bytes nor a readable URI.
	ErrNoData = errors.New("could not get image data")
)

// Image references the bytes of a picked image.
type Image struct {
	// URI is the picker's reference (a file path for local sources).
	URI string
	// Declared is the container format the picker reported, or inferred from the URI.
	Declared codec.Format
	// Size is the byte length when known up front.
	Size int64

	data     []byte
	readFile func(string) ([]byte, error)
}

// FromFile references a local file. Readability is checked immediately so that
// a refused source never produces a scan task.
func FromFile(path string, declared codec.Format) (Image, error) {
	if path == "" {
		return Image{}, ErrNoData
	}
	f, err := os.Open(path) //nolint:gosec // G304: reading a user-picked image is the point
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return Image{}, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return Image{}, fmt.Errorf("open %s: %w", path, err)
	}
	info, statErr := f.Stat()
	_ = f.Close()
	if statErr != nil {
		return Image{}, fmt.Errorf("stat %s: %w", path, statErr)
	}
	if info.IsDir() {
		return Image{}, fmt.Errorf("%s is a directory", path)
	}
	if declared == codec.FormatUnknown {
		declared = codec.FormatFromPath(path)
	}
	return Image{URI: path, Declared: declared, Size: info.Size(), readFile: os.ReadFile}, nil
}

// FromBytes references an in-memory image, for example a multipart upload.
// name is used for format inference and logging only.
func FromBytes(name string, data []byte, declared codec.Format) Image {
	if declared == codec.FormatUnknown {
		declared = codec.FormatFromPath(name)
	}
	return Image{URI: name, Declared: declared, Size: int64(len(data)), data: data}
}

// FromReader drains r into an in-memory reference.
func FromReader(name string, r io.Reader, declared codec.Format) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Image{}, fmt.Errorf("read %s: %w", name, err)
	}
	return FromBytes(name, data, declared), nil
}

// Bytes returns the image bytes, reading the file on first use for file sources.
func (i Image) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i.data != nil {
		return i.data, nil
	}
	if i.readFile == nil || i.URI == "" {
		return nil, ErrNoData
	}
	data, err := i.readFile(i.URI)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, i.URI)
		}
		return nil, err
	}
	return data, nil
}

// String returns the URI for logging.
func (i Image) String() string {
	if i.URI == "" {
		return "<memory>"
	}
	return i.URI
}
