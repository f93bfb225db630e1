package barcode

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"golang.org/x/text/unicode/norm"
)

// Detector locates one code in an image and classifies its payload.
type Detector struct {
	backend Backend
	opts    Options
}

// NewDetector wraps backend; a nil backend selects the default gozxing backend.
func NewDetector(backend Backend, opts Options) *Detector {
	if backend == nil {
		backend = NewBackend()
	}
	return &Detector{backend: backend, opts: opts}
}

// Detect returns the decoded code, or nil when the image contains none.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}

	res, err := d.backend.Decode(ctx, img, d.opts)
	if err != nil || res == nil {
		return nil, err
	}

	res.Text = norm.NFC.String(res.Text)
	res.Kind = Classify(res.Text)
	slog.Debug("Code detected", "format", res.Format.String(), "kind", res.Kind.String(), "length", len(res.Text))
	return res, nil
}
