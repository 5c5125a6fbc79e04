// Package capabilities fetches and parses TMS capabilities documents
// (tilemapresource.xml).
package capabilities

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/muesli/reflow/truncate"
)

// ResourceName is the well-known name of the capabilities document,
// relative to the tile map's base URL.
const ResourceName = "tilemapresource.xml"

const errorSnippetWidth = 120

// TileMap is the root of a TMS capabilities document. Every section is
// optional; a missing section leaves its pointer nil.
type TileMap struct {
	XMLName     xml.Name     `xml:"TileMap"`
	Title       string       `xml:"Title"`
	Abstract    string       `xml:"Abstract"`
	SRS         string       `xml:"SRS"`
	BoundingBox *BoundingBox `xml:"BoundingBox"`
	Origin      *Origin      `xml:"Origin"`
	TileFormat  *TileFormat  `xml:"TileFormat"`
	TileSets    *TileSets    `xml:"TileSets"`
}

// BoundingBox holds the declared coverage extrema. Whether the values are
// degrees or projected metres depends on the declared profile.
type BoundingBox struct {
	MinX float64 `xml:"minx,attr"`
	MinY float64 `xml:"miny,attr"`
	MaxX float64 `xml:"maxx,attr"`
	MaxY float64 `xml:"maxy,attr"`
}

type Origin struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
}

type TileFormat struct {
	Width     uint   `xml:"width,attr"`
	Height    uint   `xml:"height,attr"`
	MimeType  string `xml:"mime-type,attr"`
	Extension string `xml:"extension,attr"`
}

type TileSets struct {
	Profile  string    `xml:"profile,attr"`
	TileSets []TileSet `xml:"TileSet"`
}

type TileSet struct {
	Href          string  `xml:"href,attr"`
	UnitsPerPixel float64 `xml:"units-per-pixel,attr"`
	Order         int     `xml:"order,attr"`
}

func Parse(data []byte) (*TileMap, error) {
	var tm TileMap
	if err := xml.Unmarshal(data, &tm); err != nil {
		snippet := truncate.StringWithTail(string(data), errorSnippetWidth, "…")
		return nil, fmt.Errorf("parsing capabilities document %q: %w", snippet, err)
	}
	return &tm, nil
}

// DocumentURL builds the capabilities document URL for a tile map base URL.
func DocumentURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + ResourceName
}
