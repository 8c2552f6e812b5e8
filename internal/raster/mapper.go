package raster

import (
	"image"
	"math"

	"github.com/MeKo-Tech/gpx2png/internal/types"
)

// Mapper converts geographic points into pixels of a canvas whose corners
// are known in both coordinate systems. The interpolation is linear in
// degrees on both axes, matching how the canvas corners were derived.
type Mapper struct {
	topLeft     types.GeoPoint
	bottomRight types.GeoPoint
	size        image.Point
}

// NewMapper creates a mapper for a canvas of size pixels spanning
// topLeft to bottomRight.
func NewMapper(topLeft, bottomRight types.GeoPoint, size image.Point) *Mapper {
	return &Mapper{topLeft: topLeft, bottomRight: bottomRight, size: size}
}

// PixelFor returns the pixel of p. The top-left corner maps to (0,0) and
// the bottom-right corner to (w,h). An axis with zero geographic span maps
// every point to the middle of the canvas on that axis.
func (m *Mapper) PixelFor(p types.GeoPoint) image.Point {
	return image.Point{
		X: scale(m.topLeft.Lon-p.Lon, m.topLeft.Lon-m.bottomRight.Lon, m.size.X),
		Y: scale(m.topLeft.Lat-p.Lat, m.topLeft.Lat-m.bottomRight.Lat, m.size.Y),
	}
}

func scale(offset, span float64, extent int) int {
	if span == 0 {
		return extent / 2
	}
	return int(math.Floor(offset / span * float64(extent)))
}

// Pixels maps every point in order.
func (m *Mapper) Pixels(points []types.GeoPoint) []image.Point {
	out := make([]image.Point, len(points))
	for i, p := range points {
		out[i] = m.PixelFor(p)
	}
	return out
}

// Extent returns the smallest rectangle whose Min and Max are the top-left
// and bottom-right pixels of pts. It is empty for no points.
func Extent(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}
