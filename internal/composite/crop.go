package composite

import (
	"image"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
	"github.com/disintegration/gift"
)

// PlanCrop decides how far a canvas may shrink around the track.
// track.Min and track.Max are the top-left and bottom-right track pixels.
//
// Each axis is handled on its own: a canvas no larger than budgetPx is
// kept whole, otherwise a window one tile narrower than the canvas is
// centred on the track when the track fits inside it. The result always
// contains every pixel of the track box.
func PlanCrop(track image.Rectangle, canvas image.Point, budgetPx int) image.Rectangle {
	track = clampToCanvas(track, canvas)
	x0, x1 := planAxis(track.Min.X, track.Max.X, canvas.X, budgetPx)
	y0, y1 := planAxis(track.Min.Y, track.Max.Y, canvas.Y, budgetPx)
	return image.Rect(x0, y0, x1, y1)
}

func planAxis(lo, hi, extent, budget int) (int, int) {
	if extent <= budget {
		return 0, extent
	}
	window := extent - tile.Size
	if hi-lo >= window {
		return 0, extent
	}

	// Split the spare pixels evenly; the odd one goes after the track.
	slack := window - (hi - lo + 1)
	start := lo - slack/2
	start = max(0, min(start, extent-window))
	return start, start + window
}

func clampToCanvas(r image.Rectangle, canvas image.Point) image.Rectangle {
	clamp := func(v, extent int) int { return max(0, min(v, extent-1)) }
	return image.Rectangle{
		Min: image.Pt(clamp(r.Min.X, canvas.X), clamp(r.Min.Y, canvas.Y)),
		Max: image.Pt(clamp(r.Max.X, canvas.X), clamp(r.Max.Y, canvas.Y)),
	}
}

// Crop cuts rect out of img. The result starts at (0,0).
func Crop(img image.Image, rect image.Rectangle) *image.RGBA {
	g := gift.New(gift.Crop(rect))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
