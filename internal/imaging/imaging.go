// Package imaging resizes decoded frames and writes them as JPEG stills.
package imaging

import (
	"fmt"
	"image"
	"image/jpeg"

	"github.com/google/renameio/v2"
	"github.com/nfnt/resize"
)

// DefaultQuality matches the quality street-level platforms accept without recompression
const DefaultQuality = 88

// Resize scales img to width x height with a Lanczos filter.
// It returns img unchanged when the size already matches.
func Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// Encoder writes JPEG files atomically
type Encoder struct {
	quality int
}

// NewEncoder creates an encoder; quality outside 1..100 falls back to DefaultQuality
func NewEncoder(quality int) *Encoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Encoder{quality: quality}
}

// Quality returns the JPEG quality in use
func (e *Encoder) Quality() int {
	return e.quality
}

// WriteJPEG encodes img to path. The file appears under its final name only
// once it is complete and synced.
func (e *Encoder) WriteJPEG(path string, img image.Image) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644))
	if err != nil {
		return fmt.Errorf("create pending image: %w", err)
	}
	defer pending.Cleanup()

	if err := jpeg.Encode(pending, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit image: %w", err)
	}
	return nil
}
