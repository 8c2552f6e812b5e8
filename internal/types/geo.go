package types

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrEmptyTrack is returned when a render is attempted with no points.
var ErrEmptyTrack = errors.New("track contains no points")

// GeoPoint is a single track sample in WGS84 (EPSG:4326)
type GeoPoint struct {
	Lat float64 // Latitude (degrees, -90 to 90)
	Lon float64 // Longitude (degrees, -180 to 180)
}

// String returns a human-readable representation of the point
func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", p.Lat, p.Lon)
}

// Point returns the point as an orb.Point (lon, lat order)
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// IsFinite reports whether both coordinates are real numbers.
func (p GeoPoint) IsFinite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// GeoBox is the smallest geographic box containing a set of points.
// North >= South always holds; a box built from a single repeated point
// is degenerate (North == South, West == East).
type GeoBox struct {
	North float64 // Northern edge (max latitude)
	West  float64 // Western edge (min longitude)
	South float64 // Southern edge (min latitude)
	East  float64 // Eastern edge (max longitude)
}

// ComputeGeoBox returns the bounding box of points in a single pass.
func ComputeGeoBox(points []GeoPoint) (GeoBox, error) {
	if len(points) == 0 {
		return GeoBox{}, ErrEmptyTrack
	}

	first := points[0]
	box := GeoBox{North: first.Lat, South: first.Lat, West: first.Lon, East: first.Lon}
	for _, p := range points[1:] {
		box.North = math.Max(box.North, p.Lat)
		box.South = math.Min(box.South, p.Lat)
		box.West = math.Min(box.West, p.Lon)
		box.East = math.Max(box.East, p.Lon)
	}
	return box, nil
}

// NorthWest returns the top-left corner of the box
func (b GeoBox) NorthWest() GeoPoint {
	return GeoPoint{Lat: b.North, Lon: b.West}
}

// SouthEast returns the bottom-right corner of the box
func (b GeoBox) SouthEast() GeoPoint {
	return GeoPoint{Lat: b.South, Lon: b.East}
}

// Bound converts the box to an orb.Bound
func (b GeoBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// Contains reports whether p lies inside the box (edges included).
func (b GeoBox) Contains(p GeoPoint) bool {
	return p.Lat <= b.North && p.Lat >= b.South && p.Lon >= b.West && p.Lon <= b.East
}

// IsDegenerate reports whether the box has zero extent on either axis.
func (b GeoBox) IsDegenerate() bool {
	return b.Width() == 0 || b.Height() == 0
}

// String returns a human-readable representation of the bounding box
func (b GeoBox) String() string {
	return fmt.Sprintf("bbox(n=%.6f,w=%.6f,s=%.6f,e=%.6f)", b.North, b.West, b.South, b.East)
}

// Center returns the center point of the bounding box
func (b GeoBox) Center() GeoPoint {
	return GeoPoint{Lat: (b.North + b.South) / 2, Lon: (b.West + b.East) / 2}
}

// Width returns the width of the bounding box in degrees
func (b GeoBox) Width() float64 {
	return b.East - b.West
}

// Height returns the height of the bounding box in degrees
func (b GeoBox) Height() float64 {
	return b.North - b.South
}
