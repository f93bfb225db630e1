package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := WriteFile(t, dir, "nested/code.png", []byte{1, 2, 3})
	assert.True(t, FileExists(path))
	assert.False(t, FileExists(dir+"/missing.png"))
}

func TestGenerateQRImage(t *testing.T) {
	img := GenerateQRImage(t, ExampleURL, 300, 300)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestTruncate(t *testing.T) {
	data := []byte("0123456789")
	assert.Equal(t, []byte("01234"), Truncate(data, 0.5))
	assert.Empty(t, Truncate(data, 0))
}

func TestEncoders(t *testing.T) {
	img := CreateTestImage(16, 8, Gray)
	png := EncodePNG(t, img)
	jpg := EncodeJPEG(t, img)
	require.Greater(t, len(png), 4)
	require.Greater(t, len(jpg), 2)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
	assert.Equal(t, []byte{0xFF, 0xD8}, jpg[:2])
}
