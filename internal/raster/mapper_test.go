package raster

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/gpx2png/internal/types"
)

func TestMapperCorners(t *testing.T) {
	tl := types.GeoPoint{Lat: 52, Lon: -2}
	br := types.GeoPoint{Lat: 51, Lon: -1}
	m := NewMapper(tl, br, image.Pt(512, 768))

	tests := []struct {
		name string
		p    types.GeoPoint
		want image.Point
	}{
		{"top-left", tl, image.Pt(0, 0)},
		{"bottom-right", br, image.Pt(512, 768)},
		{"middle", types.GeoPoint{Lat: 51.5, Lon: -1.5}, image.Pt(256, 384)},
		{"quarter", types.GeoPoint{Lat: 51.75, Lon: -1.75}, image.Pt(128, 192)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.PixelFor(tt.p); got != tt.want {
				t.Fatalf("PixelFor(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestMapperFloors(t *testing.T) {
	m := NewMapper(types.GeoPoint{Lat: 1, Lon: 0}, types.GeoPoint{Lat: 0, Lon: 1}, image.Pt(10, 10))
	if got := m.PixelFor(types.GeoPoint{Lat: 0.01, Lon: 0.99}); got != image.Pt(9, 9) {
		t.Fatalf("PixelFor() = %v, want (9,9)", got)
	}
}

func TestMapperDegenerateSpan(t *testing.T) {
	p := types.GeoPoint{Lat: 52.37, Lon: 9.73}
	m := NewMapper(p, p, image.Pt(256, 256))

	for _, q := range []types.GeoPoint{p, {Lat: 10, Lon: 10}, {Lat: -40, Lon: 120}} {
		if got := m.PixelFor(q); got != image.Pt(128, 128) {
			t.Fatalf("PixelFor(%v) = %v, want canvas center", q, got)
		}
	}
}

func TestExtent(t *testing.T) {
	pts := []image.Point{{10, 40}, {3, 50}, {25, 12}}
	want := image.Rectangle{Min: image.Pt(3, 12), Max: image.Pt(25, 50)}
	if got := Extent(pts); got != want {
		t.Fatalf("Extent() = %v, want %v", got, want)
	}
	if got := Extent(nil); got != (image.Rectangle{}) {
		t.Fatalf("Extent(nil) = %v", got)
	}
}
