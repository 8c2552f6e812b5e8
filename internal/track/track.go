// Package track reads GPS tracks from GPX, KML and KMZ files.
package track

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
	"github.com/MeKo-Tech/gpx2png/internal/types"
)

var (
	// ErrUnsupportedFormat is returned for file types without a parser.
	ErrUnsupportedFormat = errors.New("unsupported track format")
	// ErrCorruptArchive is returned when a KMZ file is not a zip or lacks doc.kml.
	ErrCorruptArchive = errors.New("corrupt archive")
)

// Parser turns the raw bytes of a track file into points in track order.
type Parser interface {
	Parse(data []byte) ([]types.GeoPoint, error)
}

var parsers = map[string]Parser{
	"gpx": GPX{},
	"kml": KML{},
	"kmz": KMZ{},
}

// Formats returns the supported format names.
func Formats() []string {
	return []string{"gpx", "kml", "kmz"}
}

// ForFormat returns the parser for a format name such as "gpx".
func ForFormat(format string) (Parser, error) {
	p, ok := parsers[strings.ToLower(strings.TrimPrefix(format, "."))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// ForPath picks a parser from the file extension.
func ForPath(path string) (Parser, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return ForFormat(ext)
}

// LoadFile reads and parses the track at path.
func LoadFile(path string) ([]types.GeoPoint, error) {
	p, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track: %w", err)
	}
	return Load(p, data)
}

// Load parses data with p and checks the result is renderable.
func Load(p Parser, data []byte) ([]types.GeoPoint, error) {
	points, err := p.Parse(data)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, types.ErrEmptyTrack
	}
	for i, pt := range points {
		if err := tile.ValidatePoint(pt); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}
	return points, nil
}
