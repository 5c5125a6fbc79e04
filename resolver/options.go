package resolver

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"

	"github.com/geomapio/tmsresolve/capabilities"
	"github.com/geomapio/tmsresolve/tilescheme"
)

// TileDiscardPolicy is an opaque handle passed through to the tile provider
// that consumes the resolved configuration.
type TileDiscardPolicy interface {
	ShouldDiscard(tile []byte) bool
}

// Options are caller-supplied overrides. Any present override takes
// precedence over the corresponding document-derived value. The zero value
// of a field means "not supplied".
type Options struct {
	URL           string `validate:"omitempty,url" json:"url"`
	FileExtension string `json:"fileExtension,omitempty"`
	Credit        string `json:"credit,omitempty"`
	MinimumLevel  *uint  `json:"minimumLevel,omitempty"`
	MaximumLevel  *uint  `json:"maximumLevel,omitempty"`
	TileWidth     uint   `validate:"omitempty,gte=1" json:"tileWidth,omitempty"`
	TileHeight    uint   `validate:"omitempty,gte=1" json:"tileHeight,omitempty"`
	// FlipXY swaps the X/Y attribute roles of the document's bounding box,
	// for compatibility with older generator tools.
	FlipXY            bool                    `json:"flipXY,omitempty"`
	Ellipsoid         *tilescheme.Ellipsoid   `json:"ellipsoid,omitempty"`
	Proxy             *capabilities.Proxy     `json:"proxy,omitempty"`
	Rectangle         *tilescheme.Rectangle   `json:"-"`
	TilingScheme      tilescheme.TilingScheme `json:"-"`
	TileDiscardPolicy TileDiscardPolicy       `json:"-"`
	RetryPolicy       RetryPolicy             `json:"-"`
}

// UnmarshalJSON decodes options from JSON, tolerating unknown keys. The
// rectangle key is a [west,south,east,north] array in degrees, the
// tilingScheme key a scheme name ("geodetic" or "webmercator").
func (o *Options) UnmarshalJSON(data []byte) error {
	specials, err := marshmallow.Unmarshal(data, o, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	if rawRect, ok := specials["rectangle"]; ok {
		rect, err := unmarshalRectangle(rawRect)
		if err != nil {
			return err
		}
		o.Rectangle = rect
	}

	if rawScheme, ok := specials["tilingScheme"]; ok {
		name, ok := rawScheme.(string)
		if !ok {
			return fmt.Errorf(`"tilingScheme" should be a string but is a %T`, rawScheme)
		}
		scheme, err := SchemeByName(name, ellipsoidOr(o.Ellipsoid))
		if err != nil {
			return err
		}
		o.TilingScheme = scheme
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(o)
}

func unmarshalRectangle(raw interface{}) (*tilescheme.Rectangle, error) {
	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf(`"rectangle" should be a [west,south,east,north] array of degrees`)
	}
	var deg [4]float64
	for i, v := range arr {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf(`"rectangle" edge %d is not a number but a %T`, i, v)
		}
		deg[i] = f
	}
	rect := tilescheme.FromDegrees(deg[0], deg[1], deg[2], deg[3])
	return &rect, nil
}

func ellipsoidOr(e *tilescheme.Ellipsoid) tilescheme.Ellipsoid {
	if e != nil {
		return *e
	}
	return tilescheme.WGS84
}
