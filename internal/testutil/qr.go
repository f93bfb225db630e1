package testutil

import (
	"image"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// ExampleURL is the payload used by the end-to-end success scenarios.
const ExampleURL = "https://example.com"

// GenerateQRImage renders text as a QR code of the given size (quiet zone included).
func GenerateQRImage(t *testing.T, text string, width, height int) *image.NRGBA {
	t.Helper()

	writer := qrcode.NewQRCodeWriter()
	matrix, err := writer.Encode(text, gozxing.BarcodeFormat_QR_CODE, width, height, nil)
	require.NoError(t, err, "Failed to encode QR code")
	return imaging.Clone(matrix)
}

// GenerateQRPNG renders text as a QR code and encodes it as PNG.
func GenerateQRPNG(t *testing.T, text string, size int) []byte {
	t.Helper()
	return EncodePNG(t, GenerateQRImage(t, text, size, size))
}

// GenerateQRJPEG renders text as a QR code and encodes it as JPEG.
func GenerateQRJPEG(t *testing.T, text string, size int) []byte {
	t.Helper()
	return EncodeJPEG(t, GenerateQRImage(t, text, size, size))
}
