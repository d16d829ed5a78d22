package sampling

import "math"

// Output height limits for street-level imagery platforms
const (
	MinFrameHeight = 480
	MaxFrameHeight = 9000
)

// Geometry is the resolved output image size
type Geometry struct {
	Width  int
	Height int
	// Clamped is set when the requested height was raised to the minimum
	Clamped bool
}

// ResolveGeometry picks the output size for a requested frame height.
// A request of 0, or one above the source height, keeps the source height
// (capped at MaxFrameHeight). Requests below MinFrameHeight are raised to it,
// unless the source itself is smaller. Width keeps the source aspect ratio.
func ResolveGeometry(srcWidth, srcHeight, requested int) Geometry {
	maxHeight := srcHeight
	if maxHeight > MaxFrameHeight {
		maxHeight = MaxFrameHeight
	}
	minHeight := MinFrameHeight
	if minHeight > maxHeight {
		minHeight = maxHeight
	}

	g := Geometry{Height: requested}
	switch {
	case requested <= 0 || requested > maxHeight:
		g.Height = maxHeight
	case requested < minHeight:
		g.Height = minHeight
		g.Clamped = true
	}

	if srcHeight > 0 {
		g.Width = int(math.Round(float64(srcWidth) * float64(g.Height) / float64(srcHeight)))
	}
	return g
}

// Resizes reports whether frames need scaling from the given source height
func (g Geometry) Resizes(srcHeight int) bool {
	return g.Height != srcHeight
}
