package tile

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/MeKo-Tech/gpx2png/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func TestTileForLatLon_Known(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
		want     Coords
	}{
		{"world", 0, 0, 0, Coords{Z: 0, X: 0, Y: 0}},
		{"origin z1", 0.1, 0.1, 1, Coords{Z: 1, X: 1, Y: 0}},
		{"hanover z13", 52.3759, 9.7320, 13, Coords{Z: 13, X: 4317, Y: 2691}},
		{"east edge", 10, 180, 4, Coords{Z: 4, X: 15, Y: 7}},
		{"west edge", -10, -180, 4, Coords{Z: 4, X: 0, Y: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TileForLatLon(tt.lat, tt.lon, tt.zoom)
			if err != nil {
				t.Fatalf("TileForLatLon() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("TileForLatLon(%f, %f, %d) = %v, want %v", tt.lat, tt.lon, tt.zoom, got, tt.want)
			}
		})
	}
}

func TestTileForLatLon_ConsistentWithMaptile(t *testing.T) {
	points := []types.GeoPoint{
		{Lat: 51.9377, Lon: -1.9838},
		{Lat: 51.9977, Lon: -1.9238},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 64.1466, Lon: -21.9426},
		{Lat: -54.8019, Lon: -68.3030},
	}

	for _, p := range points {
		for zoom := 0; zoom <= 18; zoom++ {
			got, err := TileForLatLon(p.Lat, p.Lon, zoom)
			if err != nil {
				t.Fatalf("TileForLatLon(%v, %d) error = %v", p, zoom, err)
			}
			want := maptile.At(orb.Point{p.Lon, p.Lat}, maptile.Zoom(zoom))
			if got.X != want.X || got.Y != want.Y {
				t.Errorf("TileForLatLon(%v, %d) = %d/%d, maptile says %d/%d", p, zoom, got.X, got.Y, want.X, want.Y)
			}
		}
	}
}

func TestTileForLatLon_RoundTrip(t *testing.T) {
	for zoom := 0; zoom <= 16; zoom += 4 {
		n := 1 << zoom
		for _, xy := range [][2]int{{0, 0}, {n / 2, n / 3}, {n - 1, n - 1}, {n / 5, n - 1}} {
			x, y := xy[0], xy[1]

			c := Coords{Z: uint32(zoom), X: uint32(x), Y: uint32(y)}
			center := c.Center()
			got, err := TileForLatLon(center.Lat, center.Lon, zoom)
			if err != nil {
				t.Fatalf("TileForLatLon() error = %v", err)
			}
			if got != c {
				t.Errorf("center of %v projects to %v", c, got)
			}

			corner := LatLonForTile(x, y, zoom)
			got, err = TileForLatLon(corner.Lat, corner.Lon, zoom)
			if err != nil {
				t.Fatalf("TileForLatLon() error = %v", err)
			}
			if got != c {
				t.Errorf("corner of %v projects to %v", c, got)
			}
		}
	}
}

func TestTileForLatLon_CornersProjectToOwnTile(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for zoom := 0; zoom <= MaxZoom; zoom++ {
		n := 1 << zoom
		bad := 0
		for i := 0; i < 2000; i++ {
			x, y := rng.Intn(n), rng.Intn(n)
			corner := LatLonForTile(x, y, zoom)
			got, err := TileForLatLon(corner.Lat, corner.Lon, zoom)
			if err != nil {
				t.Fatalf("TileForLatLon() error = %v", err)
			}
			if got.X != uint32(x) || got.Y != uint32(y) {
				if bad < 5 {
					t.Errorf("z%d corner of %d,%d projects to %v", zoom, x, y, got)
				}
				bad++
			}
		}
		if bad > 0 {
			t.Errorf("z%d: %d of 2000 corners land in a neighbouring tile", zoom, bad)
		}
	}
}

func TestTileForLatLon_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
	}{
		{"nan lat", math.NaN(), 0, 10},
		{"inf lon", 0, math.Inf(1), 10},
		{"neg inf lat", math.Inf(-1), 0, 10},
		{"lat beyond pole", 91, 0, 10},
		{"lon beyond antimeridian", 0, 181, 10},
		{"negative zoom", 0, 0, -1},
		{"zoom too deep", 0, 0, MaxZoom + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TileForLatLon(tt.lat, tt.lon, tt.zoom)
			if !errors.Is(err, ErrInvalidCoordinate) {
				t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
			}
		})
	}
}

func TestTileForLatLon_ClampsPolarLatitudes(t *testing.T) {
	north, err := TileForLatLon(89.9, 0, 5)
	if err != nil {
		t.Fatalf("TileForLatLon() error = %v", err)
	}
	if north.Y != 0 {
		t.Fatalf("expected top row for polar latitude, got %v", north)
	}

	south, err := TileForLatLon(-90, 0, 5)
	if err != nil {
		t.Fatalf("TileForLatLon() error = %v", err)
	}
	if south.Y != 31 {
		t.Fatalf("expected bottom row for south pole, got %v", south)
	}
}

func TestLatLonForTile(t *testing.T) {
	nw := LatLonForTile(0, 0, 0)
	if math.Abs(nw.Lon+180) > 1e-9 || math.Abs(nw.Lat-MercatorMaxLat) > 1e-9 {
		t.Fatalf("LatLonForTile(0,0,0) = %v", nw)
	}

	se := LatLonForTile(1, 1, 0)
	if math.Abs(se.Lon-180) > 1e-9 || math.Abs(se.Lat+MercatorMaxLat) > 1e-9 {
		t.Fatalf("LatLonForTile(1,1,0) = %v", se)
	}

	mid := LatLonForTile(1, 1, 1)
	if math.Abs(mid.Lon) > 1e-9 || math.Abs(mid.Lat) > 1e-9 {
		t.Fatalf("LatLonForTile(1,1,1) = %v", mid)
	}
}

func TestURL(t *testing.T) {
	c := Coords{Z: 16, X: 32407, Y: 21710}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"base url", "http://tile.openstreetmap.org", "http://tile.openstreetmap.org/16/32407/21710.png"},
		{"base url trailing slash", "http://tah.openstreetmap.org/Tiles/tile/", "http://tah.openstreetmap.org/Tiles/tile/16/32407/21710.png"},
		{"template", "https://example.com/{z}/{x}/{y}.png?key=1", "https://example.com/16/32407/21710.png?key=1"},
		{"subdomain", "https://{s}.tile.example.com/{z}/{x}/{y}.png", "https://a.tile.example.com/16/32407/21710.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := URL(tt.template, c); got != tt.want {
				t.Fatalf("URL() = %s, want %s", got, tt.want)
			}
		})
	}
}
