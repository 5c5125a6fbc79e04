// Package tilescheme provides the tiling schemes a TMS imagery source can be
// addressed with: geodetic (plate carrée) and web mercator. A scheme maps
// geographic positions to tile indices per level and knows its own maximum
// valid rectangle.
package tilescheme

import (
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"

	"github.com/geomapio/tmsresolve/mathhelp"
)

// Rectangle is a geographic coverage rectangle. All edges are in radians.
type Rectangle struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

func FromDegrees(west, south, east, north float64) Rectangle {
	return Rectangle{
		West:  mathhelp.Deg2Rad(west),
		South: mathhelp.Deg2Rad(south),
		East:  mathhelp.Deg2Rad(east),
		North: mathhelp.Deg2Rad(north),
	}
}

// ClampTo pulls over-wide edges into bounds. Edges already within bounds are
// left untouched, so clamping never widens a rectangle and is idempotent.
func (r Rectangle) ClampTo(bounds Rectangle) Rectangle {
	return Rectangle{
		West:  math.Max(r.West, bounds.West),
		South: math.Max(r.South, bounds.South),
		East:  math.Min(r.East, bounds.East),
		North: math.Min(r.North, bounds.North),
	}
}

// Ellipsoid holds the radii a scheme's projection is based on, in metres.
type Ellipsoid struct {
	SemiMajorAxis float64 `validate:"gt=0" json:"semiMajorAxis"`
	SemiMinorAxis float64 `validate:"gt=0" json:"semiMinorAxis"`
}

var WGS84 = Ellipsoid{SemiMajorAxis: 6378137, SemiMinorAxis: 6356752.3142451793}

// TilingScheme maps geographic positions to tile indices at a given level.
// Rows are numbered bottom-up, the TMS native convention; consumers that
// address rows from the top must invert them against NumberOfYTilesAt.
type TilingScheme interface {
	ID() string
	// Rectangle is the scheme's own maximum valid rectangle.
	Rectangle() Rectangle
	NumberOfXTilesAt(level uint) uint
	NumberOfYTilesAt(level uint) uint
	// TileAt returns the tile containing the given lon/lat (radians).
	// Positions outside the valid rectangle land on the nearest edge tile.
	TileAt(lon, lat float64, level uint) *slippy.Tile
	// ToGeographic unprojects a native (projected) point to lon/lat radians.
	ToGeographic(native geom.Point) (lon, lat float64)
	// Geographic reports whether native coordinates are plain degrees.
	Geographic() bool
}

func tileIndex(fraction float64, numTiles uint) uint {
	i := math.Floor(fraction * float64(numTiles))
	return uint(mathhelp.Clamp(i, 0, float64(numTiles-1)))
}
