package tile

import (
	"fmt"

	"github.com/MeKo-Tech/gpx2png/internal/types"
	"github.com/paulmach/orb/maptile"
)

// Size is the edge length of a raster tile in pixels.
const Size = 256

// MaxZoom is the deepest zoom level accepted by the projection.
const MaxZoom = 22

// Coords represents a tile coordinate in the Web Mercator tile system (z/x/y)
type Coords struct {
	Z uint32 // Zoom level (0-22)
	X uint32 // X coordinate (column, west to east)
	Y uint32 // Y coordinate (row, north to south)
}

// NewCoords creates a new Coords from zoom, x, y values
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// String returns the tile coordinate as a string in format "z{zoom}_x{x}_y{y}"
func (c Coords) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", c.Z, c.X, c.Y)
}

// CacheKey returns the on-disk name of the tile: "{zoom}-{x}-{y}.png".
func (c Coords) CacheKey() string {
	return fmt.Sprintf("%d-%d-%d.png", c.Z, c.X, c.Y)
}

// ParseCacheKey parses a name produced by CacheKey back into Coords.
func ParseCacheKey(name string) (Coords, error) {
	var c Coords
	if _, err := fmt.Sscanf(name, "%d-%d-%d.png", &c.Z, &c.X, &c.Y); err != nil || c.CacheKey() != name {
		return c, fmt.Errorf("invalid tile cache key: %s", name)
	}
	if c.Z > MaxZoom || uint64(c.X) >= 1<<c.Z || uint64(c.Y) >= 1<<c.Z {
		return c, fmt.Errorf("%w: tile %s outside zoom %d grid", ErrInvalidCoordinate, c, c.Z)
	}
	return c, nil
}

// Tile returns the maptile.Tile for this coordinate
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Bounds returns the geographic area covered by the tile.
func (c Coords) Bounds() types.GeoBox {
	b := c.Tile().Bound()
	return types.GeoBox{
		North: b.Max.Lat(),
		West:  b.Min.Lon(),
		South: b.Min.Lat(),
		East:  b.Max.Lon(),
	}
}

// Center returns the geographic point in the middle of the tile.
func (c Coords) Center() types.GeoPoint {
	return latLonForFraction(float64(c.X)+0.5, float64(c.Y)+0.5, int(c.Z))
}
