package tilescheme

import (
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"

	"github.com/geomapio/tmsresolve/mathhelp"
)

// Geodetic is the global-geodetic (EPSG:4326) tiling scheme: two tiles at
// level 0, native coordinates are lon/lat degrees.
type Geodetic struct {
	ellipsoid Ellipsoid
}

func NewGeodetic(ellipsoid Ellipsoid) *Geodetic {
	return &Geodetic{ellipsoid: ellipsoid}
}

func (s *Geodetic) ID() string {
	return "geodetic"
}

func (s *Geodetic) Ellipsoid() Ellipsoid {
	return s.ellipsoid
}

func (s *Geodetic) Rectangle() Rectangle {
	return Rectangle{West: -math.Pi, South: -math.Pi / 2, East: math.Pi, North: math.Pi / 2}
}

func (s *Geodetic) NumberOfXTilesAt(level uint) uint {
	return 2 * mathhelp.Pow2(level)
}

func (s *Geodetic) NumberOfYTilesAt(level uint) uint {
	return mathhelp.Pow2(level)
}

func (s *Geodetic) TileAt(lon, lat float64, level uint) *slippy.Tile {
	x := tileIndex((lon+math.Pi)/(2*math.Pi), s.NumberOfXTilesAt(level))
	y := tileIndex((lat+math.Pi/2)/math.Pi, s.NumberOfYTilesAt(level))
	return slippy.NewTile(level, x, y)
}

func (s *Geodetic) ToGeographic(native geom.Point) (float64, float64) {
	return mathhelp.Deg2Rad(native.X()), mathhelp.Deg2Rad(native.Y())
}

func (s *Geodetic) Geographic() bool {
	return true
}
