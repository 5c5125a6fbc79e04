package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geomapio/tmsresolve/mathhelp"
	"github.com/geomapio/tmsresolve/tilescheme"
)

type stubFetcher struct {
	body  []byte
	err   error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

const mercatorDocument = `<?xml version="1.0" encoding="utf-8" ?>
<TileMap version="1.0.0">
	<SRS>EPSG:900913</SRS>
	<BoundingBox minx="0" miny="0" maxx="10000" maxy="10000"></BoundingBox>
	<TileFormat width="256" height="256" mime-type="image/png" extension="png"></TileFormat>
	<TileSets profile="global-mercator">
		<TileSet href="2" units-per-pixel="39135.75848201024" order="2"></TileSet>
		<TileSet href="9" units-per-pixel="305.74811309814453" order="9"></TileSet>
	</TileSets>
</TileMap>`

const legacyMercatorDocument = `<?xml version="1.0" encoding="utf-8" ?>
<TileMap version="1.0.0">
	<SRS>EPSG:900913</SRS>
	<BoundingBox minx="-120" miny="20" maxx="-60" maxy="40"></BoundingBox>
	<TileSets profile="mercator"></TileSets>
</TileMap>`

func mustResolve(t *testing.T, opts Options, fetcher *stubFetcher) *Configuration {
	t.Helper()
	deferred, err := Resolve(context.Background(), opts, fetcher)
	require.NoError(t, err)
	config, err := deferred.Result()
	require.NoError(t, err)
	require.NotNil(t, config)
	return config
}

func TestResolveRequiresURL(t *testing.T) {
	fetcher := &stubFetcher{}
	_, err := Resolve(context.Background(), Options{}, fetcher)
	require.ErrorIs(t, err, ErrMissingURL)
	require.Zero(t, fetcher.calls, "no fetch may happen without a url")
}

func TestResolveGlobalMercator(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(mercatorDocument)}
	config := mustResolve(t, Options{URL: "http://example.com/layer"}, fetcher)

	require.Equal(t, "webmercator", config.TilingScheme.ID())
	require.Equal(t, "http://example.com/layer/{level}/{column}/{invertedRow}.png", config.URLTemplate)
	// the bounding box footprint at level 2 is two tiles, so the derived
	// minimum level survives the footprint heuristic
	require.Equal(t, uint(2), config.MinimumLevel)
	require.NotNil(t, config.MaximumLevel)
	require.Equal(t, uint(9), *config.MaximumLevel)

	// projected extrema near the origin unproject to a sliver off Greenwich
	require.InDelta(t, 0, config.Rectangle.West, 1e-12)
	require.InDelta(t, 0, config.Rectangle.South, 1e-12)
	require.InDelta(t, mathhelp.Deg2Rad(0.0898315284), config.Rectangle.East, 1e-6)
	require.Less(t, config.Rectangle.North, config.TilingScheme.Rectangle().North)
}

func TestResolveWideFootprintForcesLevelZero(t *testing.T) {
	doc := strings.Replace(mercatorDocument,
		`<BoundingBox minx="0" miny="0" maxx="10000" maxy="10000"></BoundingBox>`, ``, 1)
	fetcher := &stubFetcher{body: []byte(doc)}
	config := mustResolve(t, Options{URL: "http://example.com/layer"}, fetcher)

	// no bounding box means full scheme coverage: 16 tiles at level 2
	require.Equal(t, config.TilingScheme.Rectangle(), config.Rectangle)
	require.Equal(t, uint(0), config.MinimumLevel)
	require.NotNil(t, config.MaximumLevel)
	require.Equal(t, uint(9), *config.MaximumLevel)
}

func TestResolveLegacyProfileReadsDegrees(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(legacyMercatorDocument)}
	config := mustResolve(t, Options{URL: "http://example.com/layer"}, fetcher)

	require.Equal(t, "webmercator", config.TilingScheme.ID())
	require.InDelta(t, mathhelp.Deg2Rad(-120), config.Rectangle.West, 1e-12)
	require.InDelta(t, mathhelp.Deg2Rad(20), config.Rectangle.South, 1e-12)
	require.InDelta(t, mathhelp.Deg2Rad(-60), config.Rectangle.East, 1e-12)
	require.InDelta(t, mathhelp.Deg2Rad(40), config.Rectangle.North, 1e-12)
	require.Nil(t, config.MaximumLevel)
	require.Equal(t, uint(0), config.MinimumLevel)
}

func TestResolveFlipXYSwapsAxes(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(legacyMercatorDocument)}
	config := mustResolve(t, Options{URL: "http://example.com/layer", FlipXY: true}, fetcher)

	scheme := config.TilingScheme
	require.InDelta(t, mathhelp.Deg2Rad(20), config.Rectangle.West, 1e-12)
	require.InDelta(t, mathhelp.Deg2Rad(40), config.Rectangle.East, 1e-12)
	// the swapped-in latitude of -120 degrees is clamped to the scheme edge
	require.Equal(t, scheme.Rectangle().South, config.Rectangle.South)
	require.InDelta(t, mathhelp.Deg2Rad(-60), config.Rectangle.North, 1e-12)
}

func TestResolveFallbackOnFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	config := mustResolve(t, Options{URL: "http://example.com/layer"}, fetcher)

	require.Equal(t, "http://example.com/layer/{level}/{column}/{invertedRow}.png", config.URLTemplate)
	require.Equal(t, uint(256), config.TileWidth)
	require.Equal(t, uint(256), config.TileHeight)
	require.Equal(t, uint(0), config.MinimumLevel)
	require.Nil(t, config.MaximumLevel)
	require.Equal(t, "webmercator", config.TilingScheme.ID())
	require.Equal(t, config.TilingScheme.Rectangle(), config.Rectangle)
}

func TestResolveFallbackKeepsOverrides(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("boom")}
	minimum := uint(3)
	rect := tilescheme.FromDegrees(-10, -10, 10, 10)
	scheme := tilescheme.NewGeodetic(tilescheme.WGS84)
	config := mustResolve(t, Options{
		URL:           "http://example.com/layer/",
		FileExtension: ".jpg",
		TileWidth:     512,
		TileHeight:    512,
		MinimumLevel:  &minimum,
		Rectangle:     &rect,
		TilingScheme:  scheme,
		Credit:        "example data",
	}, fetcher)

	require.Equal(t, "http://example.com/layer/{level}/{column}/{invertedRow}.jpg", config.URLTemplate)
	require.Equal(t, uint(512), config.TileWidth)
	require.Equal(t, uint(3), config.MinimumLevel)
	require.Equal(t, "geodetic", config.TilingScheme.ID())
	require.Equal(t, rect, config.Rectangle)
	require.Equal(t, "example data", config.Credit)
}

func TestResolveUnsupportedProfile(t *testing.T) {
	doc := strings.Replace(mercatorDocument, "global-mercator", "unknown-profile", 1)
	fetcher := &stubFetcher{body: []byte(doc)}

	deferred, err := Resolve(context.Background(), Options{URL: "http://example.com/layer"}, fetcher)
	require.NoError(t, err)
	config, err := deferred.Result()
	require.Nil(t, config, "consumer must never receive a configuration")

	var profileErr *UnsupportedProfileError
	require.ErrorAs(t, err, &profileErr)
	require.Equal(t, "unknown-profile", profileErr.Profile)
	require.Equal(t, 1, fetcher.calls)

	// the deferred is settled, not pending: a second read returns the same
	// rejection immediately
	configAgain, errAgain := deferred.Result()
	require.Nil(t, configAgain)
	require.Equal(t, err, errAgain)
}

func TestResolveUnsupportedProfileWithRetries(t *testing.T) {
	doc := strings.Replace(mercatorDocument, "global-mercator", "unknown-profile", 1)
	fetcher := &stubFetcher{body: []byte(doc)}

	deferred, err := Resolve(context.Background(), Options{
		URL:         "http://example.com/layer",
		RetryPolicy: MaxRetries(2),
	}, fetcher)
	require.NoError(t, err)
	_, err = deferred.Result()

	var profileErr *UnsupportedProfileError
	require.ErrorAs(t, err, &profileErr)
	require.Equal(t, 3, fetcher.calls, "two retries means three fetches")
}

func TestResolveSchemeOverrideSkipsProfileMapping(t *testing.T) {
	doc := strings.Replace(legacyMercatorDocument, "mercator", "unknown-profile", 1)
	fetcher := &stubFetcher{body: []byte(doc)}
	config := mustResolve(t, Options{
		URL:          "http://example.com/layer",
		TilingScheme: tilescheme.NewGeodetic(tilescheme.WGS84),
	}, fetcher)

	require.Equal(t, "geodetic", config.TilingScheme.ID())
	// no global- prefix, so the bounding box still reads as degrees
	require.InDelta(t, mathhelp.Deg2Rad(-120), config.Rectangle.West, 1e-12)
	require.InDelta(t, mathhelp.Deg2Rad(40), config.Rectangle.North, 1e-12)
}

func TestDeferredCompletesExactlyOnce(t *testing.T) {
	deferred := newDeferred()
	deferred.complete(nil, errors.New("rejected"))
	require.Panics(t, func() { deferred.complete(nil, nil) })
}

func TestOptionsUnmarshalJSON(t *testing.T) {
	raw := `{
		"url": "http://example.com/layer",
		"fileExtension": "jpg",
		"tileWidth": 512,
		"minimumLevel": 1,
		"rectangle": [-120, 20, -60, 40],
		"tilingScheme": "geodetic",
		"flipXY": true,
		"somethingUnknown": {"ignored": true}
	}`
	var opts Options
	require.NoError(t, json.Unmarshal([]byte(raw), &opts))
	require.Equal(t, "http://example.com/layer", opts.URL)
	require.Equal(t, uint(512), opts.TileWidth)
	require.NotNil(t, opts.MinimumLevel)
	require.Equal(t, uint(1), *opts.MinimumLevel)
	require.True(t, opts.FlipXY)
	require.NotNil(t, opts.Rectangle)
	require.InDelta(t, mathhelp.Deg2Rad(-120), opts.Rectangle.West, 1e-12)
	require.NotNil(t, opts.TilingScheme)
	require.Equal(t, "geodetic", opts.TilingScheme.ID())
}

func TestOptionsUnmarshalJSONRejectsBadValues(t *testing.T) {
	var opts Options
	require.Error(t, json.Unmarshal([]byte(`{"url": "not a url"}`), &opts))
	require.Error(t, json.Unmarshal([]byte(`{"rectangle": [-120, 20]}`), &opts))
	require.Error(t, json.Unmarshal([]byte(`{"tilingScheme": "utm"}`), &opts))
}

func TestConfigurationMarshalJSON(t *testing.T) {
	maximum := uint(9)
	config := &Configuration{
		URLTemplate:  "http://example.com/layer/{level}/{column}/{invertedRow}.png",
		TilingScheme: tilescheme.NewWebMercator(tilescheme.WGS84),
		Rectangle:    tilescheme.Rectangle{West: -math.Pi, South: -1, East: math.Pi, North: 1},
		TileWidth:    256,
		TileHeight:   256,
		MaximumLevel: &maximum,
	}
	data, err := json.Marshal(config)
	require.NoError(t, err)
	require.Contains(t, string(data), `"tilingScheme":"webmercator"`)
	require.Contains(t, string(data), `"maximumLevel":9`)
}

func TestKnownProfiles(t *testing.T) {
	require.Equal(t, []string{"geodetic", "global-geodetic", "mercator", "global-mercator"}, KnownProfiles())
}
