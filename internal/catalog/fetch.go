package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// maxCatalogSize caps the remote catalog download. The published data file
// is well under a megabyte; the cap only guards against a hijacked or broken
// endpoint streaming garbage.
const maxCatalogSize = 20 * 1024 * 1024

// CachePath returns the XDG data path for the cached catalog, creating
// parent directories as needed.
func CachePath() (string, error) {
	return xdg.DataFile(filepath.Join("handlescan", "data.json"))
}

// Fetch downloads the catalog from rawURL and, when cachePath is non-empty,
// caches the raw document there. The download is parsed before the cache is
// written, so a bad download never replaces a good cached copy.
func Fetch(ctx context.Context, client *http.Client, rawURL, cachePath string) (*Catalog, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrFetchFailed, resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	c, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", rawURL, err)
	}

	if cachePath != "" {
		// Cache writes are best effort; the next run simply fetches again.
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err == nil {
			_ = os.WriteFile(cachePath, data, 0o600) //nolint:errcheck
		}
	}
	return c, nil
}

// LoadOrFetch returns the cached catalog when one is readable, fetching and
// re-caching otherwise. With refresh set, the cache is bypassed and always
// rewritten from the remote document.
func LoadOrFetch(ctx context.Context, client *http.Client, rawURL, cachePath string, refresh bool) (*Catalog, error) {
	if !refresh && cachePath != "" {
		// A missing or corrupt cache is repaired by fetching, so its load
		// error is deliberately dropped here.
		if c, err := Load(cachePath); err == nil {
			return c, nil
		}
	}
	return Fetch(ctx, client, rawURL, cachePath)
}
