// Package normalize bounds the cost of decoding and detection by turning an
// arbitrary picked image into a fixed-width canonical image.
package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/source"
	"github.com/disintegration/imaging"
)

// Error is a NormalizationError: the source could not be read or converted.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalization error in %s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config controls the canonical image.
type Config struct {
	// Enabled=false passes source bytes through untouched (legacy path).
	Enabled     bool
	TargetWidth int
	Format      codec.Format
	JPEGQuality int
	Filter      string
}

// DefaultConfig returns a 500px wide PNG canonical image.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		TargetWidth: 500,
		Format:      codec.FormatPNG,
		JPEGQuality: 90,
		Filter:      "linear",
	}
}

// Canonical is the normalized image handed to the decoder.
type Canonical struct {
	Data   []byte
	Format codec.Format
	// Width and Height describe the canonical image; zero when normalization was bypassed.
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
}

// Normalizer resizes and re-encodes images.
type Normalizer struct {
	cfg    Config
	filter imaging.ResampleFilter
	enc    imaging.Format
}

// New validates cfg and builds a Normalizer.
func New(cfg Config) (*Normalizer, error) {
	filter, err := ParseFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return &Normalizer{cfg: cfg, filter: filter}, nil
	}
	if cfg.TargetWidth <= 0 {
		return nil, fmt.Errorf("invalid target width: %d (must be positive)", cfg.TargetWidth)
	}
	var enc imaging.Format
	switch cfg.Format {
	case codec.FormatPNG:
		enc = imaging.PNG
	case codec.FormatJPEG:
		enc = imaging.JPEG
		if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
			return nil, fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", cfg.JPEGQuality)
		}
	default:
		return nil, fmt.Errorf("unsupported canonical format: %s (must be png or jpeg)", cfg.Format)
	}
	return &Normalizer{cfg: cfg, filter: filter, enc: enc}, nil
}

// Config returns the normalizer configuration.
func (n *Normalizer) Config() Config { return n.cfg }

// Normalize reads src and produces the canonical image.
func (n *Normalizer) Normalize(ctx context.Context, src source.Image) (*Canonical, error) {
	data, err := src.Bytes(ctx)
	if err != nil {
		return nil, &Error{Operation: "read", Err: err}
	}
	if len(data) == 0 {
		return nil, &Error{Operation: "read", Err: errors.New("empty image data")}
	}

	if !n.cfg.Enabled {
		slog.Debug("Normalization bypassed", "source", src.String(), "declared", src.Declared.String())
		return &Canonical{Data: data, Format: src.Declared}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &Error{Operation: "decode", Err: decodeError(data, src.Declared, err)}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &Error{Operation: "decode", Err: fmt.Errorf("invalid image dimensions %dx%d", b.Dx(), b.Dy())}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resized := n.resize(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, n.enc, imaging.JPEGQuality(n.cfg.JPEGQuality)); err != nil {
		return nil, &Error{Operation: "encode", Err: err}
	}

	rb := resized.Bounds()
	slog.Debug("Image normalized",
		"source", src.String(),
		"source_width", b.Dx(), "source_height", b.Dy(),
		"width", rb.Dx(), "height", rb.Dy(),
		"format", n.cfg.Format.String(), "bytes", buf.Len())

	return &Canonical{
		Data:         buf.Bytes(),
		Format:       n.cfg.Format,
		Width:        rb.Dx(),
		Height:       rb.Dy(),
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
	}, nil
}

// decodeError classifies a source the canonical decode rejected.
func decodeError(data []byte, declared codec.Format, err error) *codec.DecodeError {
	f := codec.Sniff(data)
	if f == codec.FormatUnknown {
		f = declared
	}
	if f == codec.FormatUnknown {
		return &codec.DecodeError{Kind: codec.KindUnknownFormat, Err: err}
	}
	return &codec.DecodeError{Kind: codec.KindCorrupt, Tried: []codec.Format{f}, Err: err}
}

// resize scales img to the target width. Height follows the aspect ratio,
// rounded to the nearest pixel.
func (n *Normalizer) resize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	h := TargetHeight(b.Dx(), b.Dy(), n.cfg.TargetWidth)
	if b.Dx() == n.cfg.TargetWidth && b.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, n.cfg.TargetWidth, h, n.filter)
}

// TargetHeight returns round(h*target/w), never less than one pixel.
func TargetHeight(w, h, target int) int {
	if w <= 0 {
		return 0
	}
	return max(1, int(math.Round(float64(h)*float64(target)/float64(w))))
}

// ParseFilter maps a filter name to an imaging resampling filter.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nearest", "nearestneighbor":
		return imaging.NearestNeighbor, nil
	case "box":
		return imaging.Box, nil
	case "", "linear":
		return imaging.Linear, nil
	case "catmullrom":
		return imaging.CatmullRom, nil
	case "lanczos":
		return imaging.Lanczos, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter: %s", name)
	}
}
