package capabilities

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Fetcher retrieves the raw bytes of one document. Implementations own the
// transport details, including any retry or backoff behaviour.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches documents over plain HTTP GET.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, fetchURL string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", fetchURL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Proxy rewrites resource URLs through a proxy endpoint.
type Proxy struct {
	BaseURL string `validate:"required" json:"baseUrl"`
}

func (p *Proxy) Rewrite(target string) string {
	return p.BaseURL + url.QueryEscape(target)
}

// FetchTileMap issues exactly one request for the capabilities document of
// the tile map at baseURL, optionally rewritten through proxy.
func FetchTileMap(ctx context.Context, fetcher Fetcher, baseURL string, proxy *Proxy) (*TileMap, error) {
	docURL := DocumentURL(baseURL)
	if proxy != nil {
		docURL = proxy.Rewrite(docURL)
	}
	data, err := fetcher.Fetch(ctx, docURL)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
