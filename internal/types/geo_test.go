package types

import (
	"errors"
	"math"
	"testing"
)

func TestComputeGeoBox(t *testing.T) {
	tests := []struct {
		name   string
		points []GeoPoint
		want   GeoBox
	}{
		{
			name:   "two points",
			points: []GeoPoint{{Lat: 51.9377, Lon: -1.9838}, {Lat: 51.9977, Lon: -1.9238}},
			want:   GeoBox{North: 51.9977, West: -1.9838, South: 51.9377, East: -1.9238},
		},
		{
			name:   "order independent",
			points: []GeoPoint{{Lat: 10, Lon: 20}, {Lat: -5, Lon: 30}, {Lat: 3, Lon: -40}},
			want:   GeoBox{North: 10, West: -40, South: -5, East: 30},
		},
		{
			name:   "single point",
			points: []GeoPoint{{Lat: 52.37, Lon: 9.73}},
			want:   GeoBox{North: 52.37, West: 9.73, South: 52.37, East: 9.73},
		},
		{
			name:   "repeated point",
			points: []GeoPoint{{Lat: 1, Lon: 2}, {Lat: 1, Lon: 2}, {Lat: 1, Lon: 2}},
			want:   GeoBox{North: 1, West: 2, South: 1, East: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeGeoBox(tt.points)
			if err != nil {
				t.Fatalf("ComputeGeoBox() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ComputeGeoBox() = %v, want %v", got, tt.want)
			}
			if got.North < got.South {
				t.Fatalf("north %.6f < south %.6f", got.North, got.South)
			}
			for _, p := range tt.points {
				if !got.Contains(p) {
					t.Errorf("box %v does not contain %v", got, p)
				}
			}
		})
	}
}

func TestComputeGeoBox_Empty(t *testing.T) {
	_, err := ComputeGeoBox(nil)
	if !errors.Is(err, ErrEmptyTrack) {
		t.Fatalf("expected ErrEmptyTrack, got %v", err)
	}
}

func TestGeoBoxDegenerate(t *testing.T) {
	box, _ := ComputeGeoBox([]GeoPoint{{Lat: 1, Lon: 2}})
	if !box.IsDegenerate() {
		t.Fatalf("expected degenerate box, got %v", box)
	}
	if box.NorthWest() != box.SouthEast() {
		t.Fatalf("corners differ: %v vs %v", box.NorthWest(), box.SouthEast())
	}
}

func TestGeoBoxBound(t *testing.T) {
	box := GeoBox{North: 40, West: 10, South: 20, East: 30}
	b := box.Bound()
	if b.Min.Lon() != 10 || b.Min.Lat() != 20 || b.Max.Lon() != 30 || b.Max.Lat() != 40 {
		t.Fatalf("unexpected bound: %+v", b)
	}
	if c := box.Center(); c.Lat != 30 || c.Lon != 20 {
		t.Fatalf("unexpected center: %v", c)
	}
}

func TestGeoPointIsFinite(t *testing.T) {
	tests := []struct {
		p    GeoPoint
		want bool
	}{
		{GeoPoint{Lat: 1, Lon: 2}, true},
		{GeoPoint{Lat: math.NaN(), Lon: 2}, false},
		{GeoPoint{Lat: 1, Lon: math.Inf(1)}, false},
		{GeoPoint{Lat: math.Inf(-1), Lon: 0}, false},
	}
	for _, tt := range tests {
		if got := tt.p.IsFinite(); got != tt.want {
			t.Errorf("%v.IsFinite() = %v, want %v", tt.p, got, tt.want)
		}
	}
}
