package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// NewBackend returns the default gozxing-backed QR backend.
func NewBackend() Backend { return &gozxingBackend{} }

type gozxingBackend struct{}

func (b *gozxingBackend) Decode(_ context.Context, img image.Image, opts Options) (*Result, error) {
	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if opts.PureBarcode {
		hints[gozxing.DecodeHintType_PURE_BARCODE] = true
	}

	// The reader keeps no state between calls, but a fresh one per call keeps
	// the backend safe for concurrent use.
	reader := qrcode.NewQRCodeReader()
	r, err := reader.Decode(bitmap, hints)
	if err != nil {
		if isNoCode(err) {
			return nil, nil
		}
		return nil, err
	}

	var points []Point
	if pts := r.GetResultPoints(); len(pts) > 0 {
		points = make([]Point, 0, len(pts))
		for _, p := range pts {
			points = append(points, Point{X: int(p.GetX()), Y: int(p.GetY())})
		}
	}
	return &Result{
		Format: mapFormatFromZXing(r.GetBarcodeFormat()),
		Text:   r.GetText(),
		Points: points,
		BBox:   rectFromPoints(points),
	}, nil
}

// isNoCode reports whether err means "nothing decodable here": no finder
// patterns, or a candidate that failed format/checksum validation.
func isNoCode(err error) bool {
	var nf gozxing.NotFoundException
	var cs gozxing.ChecksumException
	var fe gozxing.FormatException
	return errors.As(err, &nf) || errors.As(err, &cs) || errors.As(err, &fe)
}

func mapFormatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	default:
		return FormatUnknown
	}
}

func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
