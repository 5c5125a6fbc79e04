package tilescheme

import (
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"

	"github.com/geomapio/tmsresolve/mathhelp"
)

// webMercatorLatLimit is atan(sinh(π)), the latitude where the square
// mercator world ends (±85.05113°).
var webMercatorLatLimit = math.Atan(math.Sinh(math.Pi))

// WebMercator is the global-mercator (EPSG:3857) tiling scheme: one tile at
// level 0, native coordinates are spherical mercator metres.
type WebMercator struct {
	ellipsoid Ellipsoid
}

func NewWebMercator(ellipsoid Ellipsoid) *WebMercator {
	return &WebMercator{ellipsoid: ellipsoid}
}

func (s *WebMercator) ID() string {
	return "webmercator"
}

func (s *WebMercator) Ellipsoid() Ellipsoid {
	return s.ellipsoid
}

func (s *WebMercator) Rectangle() Rectangle {
	return Rectangle{West: -math.Pi, South: -webMercatorLatLimit, East: math.Pi, North: webMercatorLatLimit}
}

func (s *WebMercator) NumberOfXTilesAt(level uint) uint {
	return mathhelp.Pow2(level)
}

func (s *WebMercator) NumberOfYTilesAt(level uint) uint {
	return mathhelp.Pow2(level)
}

func (s *WebMercator) TileAt(lon, lat float64, level uint) *slippy.Tile {
	bounds := s.Rectangle()
	lon = mathhelp.Clamp(lon, bounds.West, bounds.East)
	lat = mathhelp.Clamp(lat, bounds.South, bounds.North)
	n := s.NumberOfXTilesAt(level)
	// maptile wraps the antimeridian, index the column directly so the
	// east edge lands on the last tile
	x := tileIndex((lon+math.Pi)/(2*math.Pi), n)
	t := maptile.At(orb.Point{mathhelp.Rad2Deg(lon), mathhelp.Rad2Deg(lat)}, maptile.Zoom(level))
	// maptile numbers rows from the top, this scheme from the bottom
	y := n - 1 - mathhelp.Clamp(uint(t.Y), 0, n-1)
	return slippy.NewTile(level, x, y)
}

func (s *WebMercator) ToGeographic(native geom.Point) (float64, float64) {
	// orb's spherical mercator is fixed to the WGS84 semi-major axis,
	// rescale for other ellipsoids
	scale := WGS84.SemiMajorAxis / s.ellipsoid.SemiMajorAxis
	ll := project.Mercator.ToWGS84(orb.Point{native.X() * scale, native.Y() * scale})
	return mathhelp.Deg2Rad(ll[0]), mathhelp.Deg2Rad(ll[1])
}

func (s *WebMercator) Geographic() bool {
	return false
}
