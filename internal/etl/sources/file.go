package sources

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"listingexport/internal/etl"
)

// ── File Source ─────────────────────────────────────────────
// Reads a feed from a local path or a file:// URL.

type fileSource struct{}

func init() { etl.RegisterSource(&fileSource{}) }

func (s *fileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:    "file",
		Label:   "Local File",
		Schemes: []string{"", "file"},
		Help:    "Absolute or relative path to an XML feed, or a file:// URL",
	}
}

func (s *fileSource) Match(locator string) bool {
	if locator == "" {
		return false
	}
	if !strings.Contains(locator, "://") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(locator), "file://")
}

func (s *fileSource) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	path, err := LocalPath(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// LocalPath returns the filesystem path behind a file locator.
func LocalPath(locator string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(locator), "file://") {
		return locator, nil
	}
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("file url %q has no path", locator)
	}
	return u.Path, nil
}
