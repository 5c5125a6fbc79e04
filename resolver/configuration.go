package resolver

import (
	"encoding/json"

	"github.com/geomapio/tmsresolve/capabilities"
	"github.com/geomapio/tmsresolve/tilescheme"
)

// Configuration is the resolved runtime configuration of a TMS imagery
// source. It is created exactly once per resolution and read-only for the
// lifetime of the tile provider that consumes it.
//
// URLTemplate carries {level}, {column} and {invertedRow} placeholders.
// Rows in the template count from the top, inverted relative to the tiling
// scheme's bottom-up numbering; downstream tile addressing must apply
// invertedRow = NumberOfYTilesAt(level) - 1 - row.
type Configuration struct {
	URLTemplate  string                  `json:"urlTemplate"`
	TilingScheme tilescheme.TilingScheme `json:"-"`
	Rectangle    tilescheme.Rectangle    `json:"rectangle"`
	TileWidth    uint                    `json:"tileWidth"`
	TileHeight   uint                    `json:"tileHeight"`
	MinimumLevel uint                    `json:"minimumLevel"`
	// MaximumLevel is nil when the level range is unbounded above.
	MaximumLevel      *uint               `json:"maximumLevel,omitempty"`
	Proxy             *capabilities.Proxy `json:"proxy,omitempty"`
	TileDiscardPolicy TileDiscardPolicy   `json:"-"`
	Credit            string              `json:"credit,omitempty"`
}

func (c *Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Configuration              // not a pointer, because it would cause recursion to this function
		SpecialTilingScheme string `json:"tilingScheme"`
	}{
		Configuration:       *c,
		SpecialTilingScheme: c.TilingScheme.ID(),
	})
}
