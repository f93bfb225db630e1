package barcode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	res *Result
	err error
}

func (s *stubBackend) Decode(context.Context, image.Image, Options) (*Result, error) {
	return s.res, s.err
}

func TestDetectQRCode(t *testing.T) {
	d := NewDetector(nil, Options{})
	img := testutil.GenerateQRImage(t, testutil.ExampleURL, 500, 500)

	res, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, testutil.ExampleURL, res.Text)
	assert.Equal(t, FormatQR, res.Format)
	assert.Equal(t, "qr", res.Format.String())
	assert.Equal(t, KindURL, res.Kind)
	assert.True(t, res.Kind.Openable())
	assert.NotEmpty(t, res.Points)
	assert.False(t, res.BBox.Empty())
}

func TestDetectIsDeterministic(t *testing.T) {
	d := NewDetector(nil, Options{TryHarder: true})
	img := testutil.GenerateQRImage(t, "hello gophers", 300, 300)

	a, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	b, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDetectAfterJPEGRoundTrip(t *testing.T) {
	data := testutil.GenerateQRJPEG(t, "WIFI:S:home;T:WPA;P:secret;;", 400)
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	res, err := NewDetector(nil, Options{}).Detect(context.Background(), img)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, KindWiFi, res.Kind)
}

func TestDetectNotFound(t *testing.T) {
	d := NewDetector(nil, Options{TryHarder: true})

	for name, img := range map[string]image.Image{
		"blank wall": testutil.CreateTestImage(640, 480, testutil.Gray),
		"gradient":   testutil.CreateGradientImage(320, 240),
		"empty":      image.NewNRGBA(image.Rect(0, 0, 0, 0)),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := d.Detect(context.Background(), img)
			assert.NoError(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestDetectNilImage(t *testing.T) {
	_, err := NewDetector(nil, Options{}).Detect(context.Background(), nil)
	assert.Error(t, err)
}

func TestDetectBackendFault(t *testing.T) {
	boom := errors.New("backend exploded")
	d := NewDetector(&stubBackend{err: boom}, Options{})
	_, err := d.Detect(context.Background(), testutil.CreateTestImage(4, 4, testutil.Gray))
	assert.ErrorIs(t, err, boom)
}

func TestDetectNormalizesPayload(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	d := NewDetector(&stubBackend{res: &Result{Format: FormatQR, Text: "cafe\u0301"}}, Options{})
	res, err := d.Detect(context.Background(), testutil.CreateTestImage(4, 4, testutil.Gray))
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", res.Text)
	assert.Equal(t, KindText, res.Kind)
}

func TestRectFromPoints(t *testing.T) {
	assert.True(t, rectFromPoints(nil).Empty())
	r := rectFromPoints([]Point{{10, 20}, {5, 40}, {30, 25}})
	assert.Equal(t, image.Rect(5, 20, 31, 41), r)
}
