package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

var (
	// Gray is a flat mid-gray, the "blank wall" used by not-found tests.
	Gray = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// CreateTestImage creates a flat image with the specified dimensions and color.
func CreateTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// CreateGradientImage creates a horizontal gray gradient, useful as a textured
// photo stand-in that contains no code.
func CreateGradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := uint8((x * 255) / max(1, width-1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// Encode encodes img into the given imaging format.
func Encode(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()

	var buf bytes.Buffer
	opts := []imaging.EncodeOption{}
	if format == imaging.JPEG {
		opts = append(opts, imaging.JPEGQuality(95))
	}
	require.NoError(t, imaging.Encode(&buf, img, format, opts...), "Failed to encode %s", format)
	return buf.Bytes()
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	return Encode(t, img, imaging.PNG)
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	return Encode(t, img, imaging.JPEG)
}

// Truncate returns the first fraction of data, simulating a cut-off upload.
func Truncate(data []byte, fraction float64) []byte {
	n := int(float64(len(data)) * fraction)
	out := make([]byte, n)
	copy(out, data[:n])
	return out
}
