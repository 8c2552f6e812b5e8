package track

import (
	"fmt"

	"github.com/MeKo-Tech/gpx2png/internal/types"
	"github.com/tkrajina/gpxgo/gpx"
)

// GPX reads trkpt elements of every track and segment. Files without
// track points fall back to route points.
type GPX struct{}

// Parse implements Parser.
func (GPX) Parse(data []byte) ([]types.GeoPoint, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	var points []types.GeoPoint
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				points = append(points, types.GeoPoint{Lat: p.Latitude, Lon: p.Longitude})
			}
		}
	}
	if len(points) > 0 {
		return points, nil
	}

	for _, rte := range doc.Routes {
		for _, p := range rte.Points {
			points = append(points, types.GeoPoint{Lat: p.Latitude, Lon: p.Longitude})
		}
	}
	return points, nil
}
