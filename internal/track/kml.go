package track

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/gpx2png/internal/types"
)

const gxNamespace = "http://www.google.com/kml/ext/2.2"

// KML reads gx:coord elements ("lon lat alt"). Documents without any
// gx:coord fall back to LineString coordinates ("lon,lat[,alt] ...").
type KML struct{}

// Parse implements Parser.
func (KML) Parse(data []byte) ([]types.GeoPoint, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var coords, lines []types.GeoPoint
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse KML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch {
		case start.Name.Local == "coord" && (start.Name.Space == gxNamespace || start.Name.Space == "gx"):
			var text string
			if err := dec.DecodeElement(&text, &start); err != nil {
				return nil, fmt.Errorf("failed to parse KML: %w", err)
			}
			p, err := parseGxCoord(text)
			if err != nil {
				return nil, err
			}
			coords = append(coords, p)

		case start.Name.Local == "coordinates":
			var text string
			if err := dec.DecodeElement(&text, &start); err != nil {
				return nil, fmt.Errorf("failed to parse KML: %w", err)
			}
			pts, err := parseCoordinates(text)
			if err != nil {
				return nil, err
			}
			lines = append(lines, pts...)
		}
	}

	if len(coords) > 0 {
		return coords, nil
	}
	return lines, nil
}

func parseGxCoord(text string) (types.GeoPoint, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return types.GeoPoint{}, fmt.Errorf("invalid gx:coord %q", text)
	}
	return parseLonLat(fields[0], fields[1])
}

func parseCoordinates(text string) ([]types.GeoPoint, error) {
	var points []types.GeoPoint
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid coordinate tuple %q", tuple)
		}
		p, err := parseLonLat(parts[0], parts[1])
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func parseLonLat(lonText, latText string) (types.GeoPoint, error) {
	lon, err := strconv.ParseFloat(lonText, 64)
	if err != nil {
		return types.GeoPoint{}, fmt.Errorf("invalid longitude %q: %w", lonText, err)
	}
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return types.GeoPoint{}, fmt.Errorf("invalid latitude %q: %w", latText, err)
	}
	return types.GeoPoint{Lat: lat, Lon: lon}, nil
}
