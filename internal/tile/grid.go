package tile

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/gpx2png/internal/types"
)

// DefaultStartZoom is the first zoom level tried by SelectZoom.
const DefaultStartZoom = 16

// Grid is an inclusive rectangle of tiles at one zoom level.
type Grid struct {
	Zoom       uint32
	MinX, MaxX uint32
	MinY, MaxY uint32
}

// XCount returns the number of tile columns
func (g Grid) XCount() int { return int(g.MaxX-g.MinX) + 1 }

// YCount returns the number of tile rows
func (g Grid) YCount() int { return int(g.MaxY-g.MinY) + 1 }

// Count returns the total number of tiles in the grid
func (g Grid) Count() int { return g.XCount() * g.YCount() }

// String returns a human-readable representation of the grid
func (g Grid) String() string {
	return fmt.Sprintf("z%d x[%d..%d] y[%d..%d]", g.Zoom, g.MinX, g.MaxX, g.MinY, g.MaxY)
}

// ForEach calls fn for each tile, row by row from the top-left.
func (g Grid) ForEach(fn func(Coords)) {
	for y := g.MinY; y <= g.MaxY; y++ {
		for x := g.MinX; x <= g.MaxX; x++ {
			fn(NewCoords(g.Zoom, x, y))
		}
	}
}

// Tiles returns every tile of the grid in ForEach order.
func (g Grid) Tiles() []Coords {
	tiles := make([]Coords, 0, g.Count())
	g.ForEach(func(c Coords) { tiles = append(tiles, c) })
	return tiles
}

// Contains reports whether c lies in the grid.
func (g Grid) Contains(c Coords) bool {
	return c.Z == g.Zoom && c.X >= g.MinX && c.X <= g.MaxX && c.Y >= g.MinY && c.Y <= g.MaxY
}

// Offset returns the pixel position of tile c inside a canvas built from the grid.
func (g Grid) Offset(c Coords) image.Point {
	return image.Pt(Size*int(c.X-g.MinX), Size*int(c.Y-g.MinY))
}

// PixelSize returns the dimensions of a canvas built from the grid.
func (g Grid) PixelSize() image.Point {
	return image.Pt(g.XCount()*Size, g.YCount()*Size)
}

// Corners returns the geographic top-left corner of (MinX, MinY) and the
// top-left corner of (MaxX+1, MaxY+1), i.e. the bounds of the whole canvas.
func (g Grid) Corners() (topLeft, bottomRight types.GeoPoint) {
	z := int(g.Zoom)
	topLeft = LatLonForTile(int(g.MinX), int(g.MinY), z)
	bottomRight = LatLonForTile(int(g.MaxX)+1, int(g.MaxY)+1, z)
	return topLeft, bottomRight
}

// Expand grows the grid by n tiles in each direction, clamped to the world.
func (g Grid) Expand(n uint32) Grid {
	last := uint32(1<<g.Zoom) - 1
	out := g
	out.MinX = sub(g.MinX, n)
	out.MinY = sub(g.MinY, n)
	out.MaxX = min(last, g.MaxX+n)
	out.MaxY = min(last, g.MaxY+n)
	return out
}

func sub(v, n uint32) uint32 {
	if v < n {
		return 0
	}
	return v - n
}

// GridForBox returns the tight grid covering box at zoom. The north edge
// of the box maps to MinY since tile rows grow southward.
func GridForBox(box types.GeoBox, zoom int) (Grid, error) {
	nw, err := TileForLatLon(box.North, box.West, zoom)
	if err != nil {
		return Grid{}, fmt.Errorf("failed to project north-west corner: %w", err)
	}
	se, err := TileForLatLon(box.South, box.East, zoom)
	if err != nil {
		return Grid{}, fmt.Errorf("failed to project south-east corner: %w", err)
	}

	return Grid{
		Zoom: uint32(zoom),
		MinX: min(nw.X, se.X),
		MaxX: max(nw.X, se.X),
		MinY: min(nw.Y, se.Y),
		MaxY: max(nw.Y, se.Y),
	}, nil
}

// SelectZoom picks the deepest zoom, starting at startZoom, whose tight grid
// holds fewer than budget*budget tiles, recomputing the grid from box at
// every candidate. It stops at zoom 0 regardless of the count. The returned
// grid has one extra tile of margin on each side.
func SelectZoom(box types.GeoBox, budget, startZoom int) (Grid, error) {
	if budget < 1 {
		return Grid{}, errors.New("tile budget must be at least 1")
	}
	if err := validateZoom(startZoom); err != nil {
		return Grid{}, err
	}

	limit := budget * budget
	zoom := startZoom
	grid, err := GridForBox(box, zoom)
	if err != nil {
		return Grid{}, err
	}
	for grid.Count() >= limit && zoom > 0 {
		zoom--
		if grid, err = GridForBox(box, zoom); err != nil {
			return Grid{}, err
		}
	}

	return grid.Expand(1), nil
}
