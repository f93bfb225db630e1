package barcode

import (
	"context"
	"image"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
)

// String returns the symbology tag reported to callers.
func (f Format) String() string {
	switch f {
	case FormatQR:
		return "qr"
	default:
		return "unknown"
	}
}

// Options controls backend decoding behavior.
type Options struct {
	// TryHarder enables a more exhaustive search (slower but more robust).
	TryHarder bool

	// PureBarcode hints that the image contains only the code, unrotated,
	// with a minimal border.
	PureBarcode bool
}

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Result represents a decoded code.
type Result struct {
	Format Format
	Text   string
	Kind   ContentKind
	Points []Point         // finder pattern centers when available
	BBox   image.Rectangle // derived from Points
}

// Backend is a pluggable decoder implementation. It returns (nil, nil) when
// the image holds no decodable code.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) (*Result, error)
}
