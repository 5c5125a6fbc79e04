package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/carlmjohnson/versioninfo"

	"github.com/geomapio/tmsresolve/capabilities"
	"github.com/geomapio/tmsresolve/resolver"
	"github.com/geomapio/tmsresolve/tilescheme"

	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"
)

const URL string = `url`
const OPTIONSFILE string = `optionsFile`
const FILEEXTENSION string = `fileExtension`
const PROXY string = `proxy`
const CREDIT string = `credit`
const MINIMUMLEVEL string = `minimumLevel`
const MAXIMUMLEVEL string = `maximumLevel`
const RECTANGLE string = `rectangle`
const TILINGSCHEME string = `tilingScheme`
const ELLIPSOID string = `ellipsoid`
const TILEWIDTH string = `tileWidth`
const TILEHEIGHT string = `tileHeight`
const FLIPXY string = `flipXY`
const TIMEOUT string = `timeout`

//nolint:funlen
func main() {
	app := cli.NewApp()
	app.Name = "tmsresolve"
	app.Usage = "Resolves the runtime configuration of a TMS imagery source for tiled-rendering clients"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     URL,
			Aliases:  []string{"u"},
			Usage:    "Base URL of the tile map, the capabilities document is expected at <url>/tilemapresource.xml",
			Required: true,
			EnvVars:  []string{strcase.ToScreamingSnake(URL)},
		},
		&cli.StringFlag{
			Name:     OPTIONSFILE,
			Aliases:  []string{"f"},
			Usage:    "JSON file with resolution options. Flags override file values",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(OPTIONSFILE)},
		},
		&cli.StringFlag{
			Name:    FILEEXTENSION,
			Usage:   "Tile file extension override. E.g. jpg",
			EnvVars: []string{strcase.ToScreamingSnake(FILEEXTENSION)},
		},
		&cli.StringFlag{
			Name:    PROXY,
			Usage:   "Proxy base URL, the document URL is appended url-encoded",
			EnvVars: []string{strcase.ToScreamingSnake(PROXY)},
		},
		&cli.StringFlag{
			Name:    CREDIT,
			Usage:   "Attribution text passed through to the tile provider",
			EnvVars: []string{strcase.ToScreamingSnake(CREDIT)},
		},
		&cli.IntFlag{
			Name:    MINIMUMLEVEL,
			Usage:   "Minimum level-of-detail override",
			EnvVars: []string{strcase.ToScreamingSnake(MINIMUMLEVEL)},
		},
		&cli.IntFlag{
			Name:    MAXIMUMLEVEL,
			Usage:   "Maximum level-of-detail override",
			EnvVars: []string{strcase.ToScreamingSnake(MAXIMUMLEVEL)},
		},
		&cli.StringFlag{
			Name:    RECTANGLE,
			Usage:   "Coverage rectangle override. JSON array of degrees: [west,south,east,north]",
			EnvVars: []string{strcase.ToScreamingSnake(RECTANGLE)},
		},
		&cli.StringFlag{
			Name:    TILINGSCHEME,
			Usage:   "Tiling scheme override: geodetic or webmercator",
			EnvVars: []string{strcase.ToScreamingSnake(TILINGSCHEME)},
		},
		&cli.StringFlag{
			Name:    ELLIPSOID,
			Usage:   "Ellipsoid radii override in metres. JSON array: [semiMajorAxis,semiMinorAxis]",
			EnvVars: []string{strcase.ToScreamingSnake(ELLIPSOID)},
		},
		&cli.UintFlag{
			Name:    TILEWIDTH,
			Usage:   "Tile width override in pixels",
			EnvVars: []string{strcase.ToScreamingSnake(TILEWIDTH)},
		},
		&cli.UintFlag{
			Name:    TILEHEIGHT,
			Usage:   "Tile height override in pixels",
			EnvVars: []string{strcase.ToScreamingSnake(TILEHEIGHT)},
		},
		&cli.BoolFlag{
			Name:    FLIPXY,
			Usage:   "Swap the X/Y roles of the document's bounding box (old gdal2tiles compatibility)",
			EnvVars: []string{strcase.ToScreamingSnake(FLIPXY)},
		},
		&cli.DurationFlag{
			Name:    TIMEOUT,
			Usage:   "Timeout for fetching the capabilities document",
			Value:   0,
			EnvVars: []string{strcase.ToScreamingSnake(TIMEOUT)},
		},
	}

	app.Action = func(c *cli.Context) error {
		opts, err := loadOptions(c)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if timeout := c.Duration(TIMEOUT); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		fetcher := &capabilities.HTTPFetcher{Client: &http.Client{Timeout: c.Duration(TIMEOUT)}}

		log.Printf("=== resolving %s ===", opts.URL)
		deferred, err := resolver.Resolve(ctx, opts, fetcher)
		if err != nil {
			return err
		}
		config, err := deferred.Result()
		if err != nil {
			return err
		}
		log.Println("=== done ===")

		out, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// loadOptions merges the options file (if any) with flag overrides.
func loadOptions(c *cli.Context) (resolver.Options, error) {
	var opts resolver.Options
	if optionsFile := c.String(OPTIONSFILE); optionsFile != "" {
		data, err := os.ReadFile(optionsFile)
		if err != nil {
			return opts, fmt.Errorf("reading options file: %w", err)
		}
		if err = json.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("decoding options file: %w", err)
		}
	}

	opts.URL = c.String(URL)
	if c.IsSet(FILEEXTENSION) {
		opts.FileExtension = c.String(FILEEXTENSION)
	}
	if c.IsSet(PROXY) {
		opts.Proxy = &capabilities.Proxy{BaseURL: c.String(PROXY)}
	}
	if c.IsSet(CREDIT) {
		opts.Credit = c.String(CREDIT)
	}
	if c.IsSet(MINIMUMLEVEL) {
		level := uint(c.Int(MINIMUMLEVEL))
		opts.MinimumLevel = &level
	}
	if c.IsSet(MAXIMUMLEVEL) {
		level := uint(c.Int(MAXIMUMLEVEL))
		opts.MaximumLevel = &level
	}
	if c.IsSet(TILEWIDTH) {
		opts.TileWidth = c.Uint(TILEWIDTH)
	}
	if c.IsSet(TILEHEIGHT) {
		opts.TileHeight = c.Uint(TILEHEIGHT)
	}
	if c.IsSet(FLIPXY) {
		opts.FlipXY = c.Bool(FLIPXY)
	}
	if c.IsSet(RECTANGLE) {
		var degrees [4]float64
		if err := json.Unmarshal([]byte(c.String(RECTANGLE)), &degrees); err != nil {
			return opts, fmt.Errorf("decoding rectangle: %w", err)
		}
		rect := tilescheme.FromDegrees(degrees[0], degrees[1], degrees[2], degrees[3])
		opts.Rectangle = &rect
	}
	if c.IsSet(ELLIPSOID) {
		var radii [2]float64
		if err := json.Unmarshal([]byte(c.String(ELLIPSOID)), &radii); err != nil {
			return opts, fmt.Errorf("decoding ellipsoid: %w", err)
		}
		opts.Ellipsoid = &tilescheme.Ellipsoid{SemiMajorAxis: radii[0], SemiMinorAxis: radii[1]}
	}
	if c.IsSet(TILINGSCHEME) {
		ellipsoid := tilescheme.WGS84
		if opts.Ellipsoid != nil {
			ellipsoid = *opts.Ellipsoid
		}
		scheme, err := resolver.SchemeByName(c.String(TILINGSCHEME), ellipsoid)
		if err != nil {
			return opts, err
		}
		opts.TilingScheme = scheme
	}
	return opts, nil
}
