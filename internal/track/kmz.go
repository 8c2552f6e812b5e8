package track

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/MeKo-Tech/gpx2png/internal/types"
)

// KMZ unpacks doc.kml from a zip archive and parses it as KML.
type KMZ struct{}

// Parse implements Parser.
func (KMZ) Parse(data []byte) ([]types.GeoPoint, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	f, err := zr.Open("doc.kml")
	if err != nil {
		return nil, fmt.Errorf("%w: doc.kml not found", ErrCorruptArchive)
	}
	defer f.Close()

	doc, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading doc.kml: %v", ErrCorruptArchive, err)
	}
	return KML{}.Parse(doc)
}
