package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// HTTPRenderer fetches raw HTML without executing scripts.
type HTTPRenderer struct {
	client *http.Client
}

var _ Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer wraps client; nil gets a 30s timeout client.
func NewHTTPRenderer(client *http.Client) *HTTPRenderer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRenderer{client: client}
}

// Render issues a GET; interactive options are ignored.
func (r *HTTPRenderer) Render(ctx context.Context, url string, _ RenderOptions) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("page %s returned %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("read page: %w", err)
	}
	return Page{URL: url, HTML: string(body)}, nil
}

// Close is a no-op.
func (r *HTTPRenderer) Close() error { return nil }
