// Package resolver determines the runtime configuration of a TMS imagery
// source from its capabilities document: tiling scheme, coverage rectangle,
// tile dimensions, level range and per-tile URL template. A broken or
// missing document degrades to conservative defaults rather than failing,
// so a tile layer with approximate coverage beats no layer at all.
package resolver

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	"github.com/umpc/go-sortedmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/geomapio/tmsresolve/capabilities"
	"github.com/geomapio/tmsresolve/mathhelp"
	"github.com/geomapio/tmsresolve/tilescheme"
)

// globalProfilePrefix marks profiles whose bounding boxes are projected
// coordinates; legacy profiles without it declare plain degrees.
const globalProfilePrefix = "global-"

// maxMinimumLevelTileCount caps how many tiles the coverage rectangle may
// span at the minimum level before it is forced down to level 0.
const maxMinimumLevelTileCount = 4

type profileEntry struct {
	scheme    func(tilescheme.Ellipsoid) tilescheme.TilingScheme
	projected bool
}

var profiles = orderedmap.New[string, profileEntry]()

func init() {
	geodetic := func(e tilescheme.Ellipsoid) tilescheme.TilingScheme { return tilescheme.NewGeodetic(e) }
	mercator := func(e tilescheme.Ellipsoid) tilescheme.TilingScheme { return tilescheme.NewWebMercator(e) }
	profiles.Set("geodetic", profileEntry{scheme: geodetic})
	profiles.Set("global-geodetic", profileEntry{scheme: geodetic})
	profiles.Set("mercator", profileEntry{scheme: mercator})
	profiles.Set("global-mercator", profileEntry{scheme: mercator, projected: true})
}

// KnownProfiles lists the supported capabilities profiles in registration
// order.
func KnownProfiles() []string {
	names := make([]string, 0, profiles.Len())
	for p := profiles.Oldest(); p != nil; p = p.Next() {
		names = append(names, p.Key)
	}
	return names
}

// SchemeByName builds a tiling scheme from an override name.
func SchemeByName(name string, ellipsoid tilescheme.Ellipsoid) (tilescheme.TilingScheme, error) {
	switch name {
	case "geodetic":
		return tilescheme.NewGeodetic(ellipsoid), nil
	case "webmercator":
		return tilescheme.NewWebMercator(ellipsoid), nil
	}
	return nil, fmt.Errorf("unknown tiling scheme %q, expected geodetic or webmercator", name)
}

// tileDefaults are the conservative values used wherever neither the caller
// nor the capabilities document supplies one.
type tileDefaults struct {
	FileExtension string `default:"png"`
	TileWidth     uint   `default:"256"`
	TileHeight    uint   `default:"256"`
	MinimumLevel  uint   `default:"0"`
}

func newTileDefaults() tileDefaults {
	var d tileDefaults
	if err := defaults.Set(&d); err != nil {
		panic(err)
	}
	return d
}

// Resolve starts one asynchronous resolution of the TMS imagery source at
// opts.URL and returns the deferred that will deliver its configuration.
// A missing URL or invalid options fail synchronously, before any fetch.
// Every other failure mode settles the deferred: fetch and parse errors
// degrade to defaults, an un-retried unsupported profile rejects permanently.
func Resolve(ctx context.Context, opts Options, fetcher capabilities.Fetcher) (*Deferred, error) {
	if opts.URL == "" {
		return nil, ErrMissingURL
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&opts); err != nil {
		return nil, fmt.Errorf("invalid resolution options: %w", err)
	}
	if fetcher == nil {
		fetcher = &capabilities.HTTPFetcher{}
	}

	deferred := newDeferred()
	go run(ctx, opts, fetcher, deferred)
	return deferred, nil
}

func run(ctx context.Context, opts Options, fetcher capabilities.Fetcher, deferred *Deferred) {
	ellipsoid := ellipsoidOr(opts.Ellipsoid)
	for attempt := uint(0); ; attempt++ {
		doc, err := capabilities.FetchTileMap(ctx, fetcher, opts.URL, opts.Proxy)
		if err != nil {
			log.Printf("capabilities document for %s unavailable, using defaults: %v", opts.URL, err)
			deferred.complete(fallback(opts, ellipsoid), nil)
			return
		}

		config, err := resolve(opts, ellipsoid, doc)
		if err != nil {
			if opts.RetryPolicy != nil && opts.RetryPolicy.ShouldRetry(err, attempt) {
				log.Printf("retrying capabilities fetch for %s after: %v", opts.URL, err)
				continue
			}
			deferred.complete(nil, err)
			return
		}
		deferred.complete(config, nil)
		return
	}
}

// resolution is the context value threaded through the pipeline steps.
type resolution struct {
	opts      Options
	ellipsoid tilescheme.Ellipsoid
	doc       *capabilities.TileMap

	scheme       tilescheme.TilingScheme
	projected    bool
	extension    string
	tileWidth    uint
	tileHeight   uint
	rectangle    tilescheme.Rectangle
	minimumLevel uint
	maximumLevel *uint
}

func resolve(opts Options, ellipsoid tilescheme.Ellipsoid, doc *capabilities.TileMap) (*Configuration, error) {
	r := &resolution{opts: opts, ellipsoid: ellipsoid, doc: doc}
	if err := r.resolveProfile(); err != nil {
		return nil, err
	}
	r.deriveRectangle()
	r.resolveLevelRange()
	return r.assemble(), nil
}

// resolveProfile maps the document's declared profile to a tiling scheme and
// settles the tile format. A tiling-scheme override skips profile mapping
// entirely.
func (r *resolution) resolveProfile() error {
	r.extension, r.tileWidth, r.tileHeight = resolveFormat(r.doc.TileFormat, r.opts)

	var profile string
	if r.doc.TileSets != nil {
		profile = r.doc.TileSets.Profile
	}

	if r.opts.TilingScheme != nil {
		r.scheme = r.opts.TilingScheme
		r.projected = !r.scheme.Geographic() && strings.HasPrefix(profile, globalProfilePrefix)
		return nil
	}

	entry, ok := profiles.Get(profile)
	if !ok {
		return &UnsupportedProfileError{Profile: profile}
	}
	r.scheme = entry.scheme(r.ellipsoid)
	r.projected = entry.projected
	return nil
}

// resolveFormat settles extension and tile dimensions: caller override first,
// then the document's format descriptor, then defaults.
func resolveFormat(tf *capabilities.TileFormat, opts Options) (string, uint, uint) {
	d := newTileDefaults()
	extension, width, height := d.FileExtension, d.TileWidth, d.TileHeight
	if tf != nil {
		if tf.Extension != "" {
			extension = tf.Extension
		}
		if tf.Width > 0 {
			width = tf.Width
		}
		if tf.Height > 0 {
			height = tf.Height
		}
	}
	if opts.FileExtension != "" {
		extension = strings.TrimPrefix(opts.FileExtension, ".")
	}
	if opts.TileWidth > 0 {
		width = opts.TileWidth
	}
	if opts.TileHeight > 0 {
		height = opts.TileHeight
	}
	return extension, width, height
}

// deriveRectangle computes the coverage rectangle from the override or the
// document's bounding box and clamps it to the scheme's valid rectangle.
func (r *resolution) deriveRectangle() {
	rect := r.scheme.Rectangle()
	switch {
	case r.opts.Rectangle != nil:
		rect = *r.opts.Rectangle
	case r.doc.BoundingBox != nil:
		bb := *r.doc.BoundingBox
		if r.opts.FlipXY {
			bb.MinX, bb.MinY = bb.MinY, bb.MinX
			bb.MaxX, bb.MaxY = bb.MaxY, bb.MaxX
		}
		if r.projected {
			west, south := r.scheme.ToGeographic(geom.Point{bb.MinX, bb.MinY})
			east, north := r.scheme.ToGeographic(geom.Point{bb.MaxX, bb.MaxY})
			rect = tilescheme.Rectangle{West: west, South: south, East: east, North: north}
		} else {
			rect = tilescheme.FromDegrees(bb.MinX, bb.MinY, bb.MaxX, bb.MaxY)
		}
	}
	r.rectangle = rect.ClampTo(r.scheme.Rectangle())
}

// resolveLevelRange settles the level range from overrides or the tileset
// list and applies the minimum-level footprint heuristic.
func (r *resolution) resolveLevelRange() {
	minimum := r.opts.MinimumLevel
	r.maximumLevel = r.opts.MaximumLevel

	if r.doc.TileSets != nil && len(r.doc.TileSets.TileSets) > 0 {
		// keyed and sorted by the declared order attribute, so documents
		// that violate the ascending-order convention still resolve to the
		// true lowest and highest levels
		byOrder := sortedmap.New(len(r.doc.TileSets.TileSets), func(i, j interface{}) bool {
			return i.(capabilities.TileSet).Order < j.(capabilities.TileSet).Order
		})
		for _, ts := range r.doc.TileSets.TileSets {
			byOrder.Replace(ts.Order, ts)
		}
		orders := byOrder.Keys()
		if minimum == nil {
			lowest := uint(mathhelp.Clamp(orders[0].(int), 0, math.MaxInt))
			minimum = &lowest
		}
		if r.maximumLevel == nil {
			highest := uint(mathhelp.Clamp(orders[len(orders)-1].(int), 0, math.MaxInt))
			r.maximumLevel = &highest
		}
	}
	if minimum != nil {
		r.minimumLevel = *minimum
	}

	// A minimum level whose footprint spans more than a handful of tiles
	// would trigger excessive tile requests on first render. Level 0 is
	// always safe: every scheme covers its whole rectangle in at most a
	// few tiles there.
	sw := r.scheme.TileAt(r.rectangle.West, r.rectangle.South, r.minimumLevel)
	ne := r.scheme.TileAt(r.rectangle.East, r.rectangle.North, r.minimumLevel)
	tileCount := (mathhelp.AbsDiff(sw.X, ne.X) + 1) * (mathhelp.AbsDiff(sw.Y, ne.Y) + 1)
	if tileCount > maxMinimumLevelTileCount {
		r.minimumLevel = 0
	}
}

func (r *resolution) assemble() *Configuration {
	return &Configuration{
		URLTemplate:       templateURL(r.opts.URL, r.extension),
		TilingScheme:      r.scheme,
		Rectangle:         r.rectangle,
		TileWidth:         r.tileWidth,
		TileHeight:        r.tileHeight,
		MinimumLevel:      r.minimumLevel,
		MaximumLevel:      r.maximumLevel,
		Proxy:             r.opts.Proxy,
		TileDiscardPolicy: r.opts.TileDiscardPolicy,
		Credit:            r.opts.Credit,
	}
}

// fallback builds a conservative configuration when the capabilities
// document could not be fetched or parsed. Caller overrides still win.
func fallback(opts Options, ellipsoid tilescheme.Ellipsoid) *Configuration {
	scheme := opts.TilingScheme
	if scheme == nil {
		scheme = tilescheme.NewWebMercator(ellipsoid)
	}
	rect := scheme.Rectangle()
	if opts.Rectangle != nil {
		rect = *opts.Rectangle
	}
	extension, width, height := resolveFormat(nil, opts)
	minimum := newTileDefaults().MinimumLevel
	if opts.MinimumLevel != nil {
		minimum = *opts.MinimumLevel
	}
	return &Configuration{
		URLTemplate:       templateURL(opts.URL, extension),
		TilingScheme:      scheme,
		Rectangle:         rect.ClampTo(scheme.Rectangle()),
		TileWidth:         width,
		TileHeight:        height,
		MinimumLevel:      minimum,
		MaximumLevel:      opts.MaximumLevel,
		Proxy:             opts.Proxy,
		TileDiscardPolicy: opts.TileDiscardPolicy,
		Credit:            opts.Credit,
	}
}

func templateURL(baseURL, extension string) string {
	return strings.TrimSuffix(baseURL, "/") + "/{level}/{column}/{invertedRow}." + extension
}
