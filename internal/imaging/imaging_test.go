package imaging

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func TestResizeKeepsMatchingSize(t *testing.T) {
	img := testImage(64, 36)
	assert.Same(t, img, Resize(img, 64, 36))
}

func TestResizeScales(t *testing.T) {
	out := Resize(testImage(192, 108), 85, 48)
	assert.Equal(t, 85, out.Bounds().Dx())
	assert.Equal(t, 48, out.Bounds().Dy())
}

func TestWriteJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip_f00000.jpg")

	enc := NewEncoder(DefaultQuality)
	require.NoError(t, enc.WriteJPEG(path, testImage(32, 24)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 24, cfg.Height)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no pending files left behind")
}

func TestWriteJPEGMissingDir(t *testing.T) {
	enc := NewEncoder(DefaultQuality)
	err := enc.WriteJPEG(filepath.Join(t.TempDir(), "missing", "f.jpg"), testImage(8, 8))
	assert.Error(t, err)
}

func TestNewEncoderQualityFallback(t *testing.T) {
	assert.Equal(t, DefaultQuality, NewEncoder(0).Quality())
	assert.Equal(t, DefaultQuality, NewEncoder(101).Quality())
	assert.Equal(t, 75, NewEncoder(75).Quality())
}
