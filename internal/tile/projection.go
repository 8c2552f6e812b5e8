package tile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/gpx2png/internal/types"
)

// MercatorMaxLat is the latitude at which the Web Mercator square ends.
const MercatorMaxLat = 85.0511287798066

// edgeEpsilon moves points that rounding left just short of a tile edge onto
// it, so tile corners project back to their own tile. In map units it is
// about 40 µm on the ground.
const edgeEpsilon = 1e-12

// ErrInvalidCoordinate reports a latitude, longitude or zoom the projection cannot handle.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ValidatePoint rejects non-finite values and points outside WGS84 ranges.
// Latitudes between the Mercator limit and the poles are accepted; the
// projection clamps them.
func ValidatePoint(p types.GeoPoint) error {
	if !p.IsFinite() {
		return fmt.Errorf("%w: %v is not finite", ErrInvalidCoordinate, p)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90,90]", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180,180]", ErrInvalidCoordinate, p.Lon)
	}
	return nil
}

func validateZoom(zoom int) error {
	if zoom < 0 || zoom > MaxZoom {
		return fmt.Errorf("%w: zoom %d out of range [0,%d]", ErrInvalidCoordinate, zoom, MaxZoom)
	}
	return nil
}

// ClampLat limits lat to the range the Mercator projection can represent.
func ClampLat(lat float64) float64 {
	return math.Max(-MercatorMaxLat, math.Min(MercatorMaxLat, lat))
}

// TileForLatLon returns the slippy-map tile containing (lat, lon) at zoom.
func TileForLatLon(lat, lon float64, zoom int) (Coords, error) {
	if err := validateZoom(zoom); err != nil {
		return Coords{}, err
	}
	if err := ValidatePoint(types.GeoPoint{Lat: lat, Lon: lon}); err != nil {
		return Coords{}, err
	}

	n := math.Exp2(float64(zoom))
	latRad := ClampLat(lat) * math.Pi / 180.0

	// fx and fy are positions in the unit square of the whole map
	fx := (lon + 180.0) / 360.0
	fy := (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0
	x := math.Floor((fx + edgeEpsilon) * n)
	y := math.Floor((fy + edgeEpsilon) * n)

	return Coords{Z: uint32(zoom), X: clampIndex(x, n), Y: clampIndex(y, n)}, nil
}

// clampIndex keeps the east edge (lon = 180) and the clamped poles on the grid.
func clampIndex(v, n float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return uint32(n - 1)
	}
	return uint32(v)
}

// LatLonForTile returns the north-west corner of tile (x, y) at zoom.
// x and y may equal 2^zoom to address the far edges of the world.
func LatLonForTile(x, y, zoom int) types.GeoPoint {
	return latLonForFraction(float64(x), float64(y), zoom)
}

func latLonForFraction(x, y float64, zoom int) types.GeoPoint {
	n := math.Exp2(float64(zoom))
	lon := x/n*360.0 - 180.0
	lat := math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180.0 / math.Pi
	return types.GeoPoint{Lat: lat, Lon: lon}
}

// URL formats the address of a tile. Templates containing {z}, {x} and {y}
// (and optionally {s} for a/b/c subdomains) are filled in; anything else is
// treated as a base URL and gets "/{z}/{x}/{y}.png" appended.
func URL(template string, c Coords) string {
	if strings.Contains(template, "{z}") {
		r := strings.NewReplacer(
			"{z}", strconv.FormatUint(uint64(c.Z), 10),
			"{x}", strconv.FormatUint(uint64(c.X), 10),
			"{y}", strconv.FormatUint(uint64(c.Y), 10),
			"{s}", string("abc"[(c.X+c.Y)%3]),
		)
		return r.Replace(template)
	}
	return fmt.Sprintf("%s/%d/%d/%d.png", strings.TrimRight(template, "/"), c.Z, c.X, c.Y)
}
