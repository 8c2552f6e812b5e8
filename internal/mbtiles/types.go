// Package mbtiles stores raster tiles in an MBTiles (SQLite) database.
package mbtiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Metadata contains the MBTiles metadata rows written on creation.
type Metadata struct {
	Name        string // Tileset identifier, usually the renderer name
	Format      string // Tile data type (png, jpg)
	Attribution string
	Description string
	Bounds      orb.Bound // Covered area; zero means unknown
	MinZoom     int
	MaxZoom     int
}

// ToMap converts Metadata to name/value rows. Empty fields are omitted.
func (m Metadata) ToMap() map[string]string {
	rows := make(map[string]string)

	set := func(k, v string) {
		if v != "" {
			rows[k] = v
		}
	}
	set("name", m.Name)
	set("format", m.Format)
	set("attribution", m.Attribution)
	set("description", m.Description)
	set("type", "baselayer")

	if m.MaxZoom > 0 {
		rows["minzoom"] = strconv.Itoa(m.MinZoom)
		rows["maxzoom"] = strconv.Itoa(m.MaxZoom)
	}
	if !m.Bounds.IsZero() {
		rows["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds.Min.Lon(), m.Bounds.Min.Lat(), m.Bounds.Max.Lon(), m.Bounds.Max.Lat())
	}
	return rows
}

// metadataFromMap is the inverse of ToMap; unparsable values are skipped.
func metadataFromMap(rows map[string]string) Metadata {
	m := Metadata{
		Name:        rows["name"],
		Format:      rows["format"],
		Attribution: rows["attribution"],
		Description: rows["description"],
	}
	if v, err := strconv.Atoi(rows["minzoom"]); err == nil {
		m.MinZoom = v
	}
	if v, err := strconv.Atoi(rows["maxzoom"]); err == nil {
		m.MaxZoom = v
	}

	// "minLon,minLat,maxLon,maxLat"
	if parts := strings.Split(rows["bounds"], ","); len(parts) == 4 {
		var vals [4]float64
		for i, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return m
			}
			vals[i] = f
		}
		m.Bounds = orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}
	}
	return m
}
