package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"listingexport/internal/etl"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches a feed from a remote URL. There is no client timeout; the
// caller bounds the fetch through ctx.

type httpSource struct {
	client *http.Client
}

func init() { etl.RegisterSource(&httpSource{client: http.DefaultClient}) }

func (s *httpSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:    "http",
		Label:   "HTTP Feed",
		Schemes: []string{"http", "https"},
		Help:    "Full URL of the XML feed (e.g., https://example.com/feeds/listings.xml)",
	}
}

func (s *httpSource) Match(locator string) bool {
	l := strings.ToLower(locator)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func (s *httpSource) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml;q=0.9, */*;q=0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}
