// Package geojson exports a rendered track and its tile grid as GeoJSON.
package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
	"github.com/MeKo-Tech/gpx2png/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds written to the "kind" property.
const (
	KindTrack = "track"
	KindGrid  = "grid"
)

// FromTrack builds a FeatureCollection with the track as a LineString (a
// Point for single-point tracks) and the outline of grid as a Polygon.
// The collection's bbox is the track's bounding box.
func FromTrack(points []types.GeoPoint, grid tile.Grid) (*geojson.FeatureCollection, error) {
	box, err := types.ComputeGeoBox(points)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(box.Bound())

	var geom orb.Geometry
	if len(points) == 1 {
		geom = points[0].Point()
	} else {
		line := make(orb.LineString, 0, len(points))
		for _, p := range points {
			line = append(line, p.Point())
		}
		geom = line
	}
	track := geojson.NewFeature(geom)
	track.Properties["kind"] = KindTrack
	track.Properties["points"] = len(points)
	fc.Append(track)

	topLeft, bottomRight := grid.Corners()
	outline := orb.Bound{
		Min: orb.Point{topLeft.Lon, bottomRight.Lat},
		Max: orb.Point{bottomRight.Lon, topLeft.Lat},
	}
	g := geojson.NewFeature(outline.ToPolygon())
	g.Properties["kind"] = KindGrid
	g.Properties["zoom"] = grid.Zoom
	g.Properties["tiles"] = grid.Count()
	g.Properties["grid"] = grid.String()
	fc.Append(g)

	return fc, nil
}

// FromTrackBytes is FromTrack marshalled as indented JSON.
func FromTrackBytes(points []types.GeoPoint, grid tile.Grid) ([]byte, error) {
	fc, err := FromTrack(points, grid)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to GeoJSON: %w", err)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	return data, nil
}
