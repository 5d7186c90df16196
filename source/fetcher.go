package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ============================================================================
// SOURCE — Retrieves the raw dataset and taxonomy payloads
// ============================================================================
// The store only sees the Fetcher interface. This file carries the two
// default implementations: plain HTTP GET and local files. Anything else
// (object storage, fixtures) only has to return bytes.
// ============================================================================

// Default locations of the two resources the dashboard loads.
const (
	DefaultDatasetURL  = "https://raw.githubusercontent.com/drpawelo/data/main/health/OCED_simplified.csv"
	DefaultTaxonomyURL = "https://raw.githubusercontent.com/simonpcastillo/dshsc_term3_python/refs/heads/main/data/columns_dataset.csv"
)

// Resource names one retrievable payload.
type Resource struct {
	Name     string `json:"name"`
	Location string `json:"location"` // URL or file path
}

// Fetcher retrieves a resource as text.
type Fetcher interface {
	Fetch(ctx context.Context, r Resource) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, r Resource) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, r Resource) ([]byte, error) { return f(ctx, r) }

// HTTPClient allows injecting a mock transport in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxBodyBytes caps a single payload; the OECD extract is well under this.
const maxBodyBytes = 64 << 20

// ErrTooLarge is returned for a payload over the size cap. The payload is
// rejected whole; it is never cut short and handed on.
var ErrTooLarge = errors.New("payload exceeds size limit")

// HTTPFetcher performs GET requests.
type HTTPFetcher struct {
	client HTTPClient
	logger *slog.Logger
	limit  int64
}

// NewHTTPFetcher creates a fetcher with the given client timeout. A nil
// client gets a fresh *http.Client.
func NewHTTPFetcher(client HTTPClient, timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{client: client, logger: logger, limit: maxBodyBytes}
}

// Fetch downloads r.Location.
func (f *HTTPFetcher) Fetch(ctx context.Context, r Resource) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", r.Name, err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request for %s failed: %w", r.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", r.Name, err)
	}
	if int64(len(body)) > f.limit {
		return nil, fmt.Errorf("%s: %w (%d bytes)", r.Name, ErrTooLarge, f.limit)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", r.Name, resp.StatusCode, truncate(string(body), 200))
	}

	f.logger.Info("fetched resource",
		"resource", r.Name,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

// FileFetcher reads resources from the local filesystem. Locations may be
// bare paths or file:// URLs. Files over the HTTP size cap are refused too.
type FileFetcher struct{}

// Fetch reads r.Location from disk.
func (FileFetcher) Fetch(_ context.Context, r Resource) ([]byte, error) {
	path := strings.TrimPrefix(r.Location, "file://")
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.Name, err)
	}
	if info.Size() > maxBodyBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", r.Name, ErrTooLarge, int64(maxBodyBytes))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.Name, err)
	}
	return data, nil
}

// Auto dispatches on the location: http(s) URLs go to HTTP, everything else
// to the filesystem.
type Auto struct {
	HTTP Fetcher
	File Fetcher
}

// NewAuto builds an Auto fetcher around an HTTPFetcher and FileFetcher.
func NewAuto(timeout time.Duration, logger *slog.Logger) *Auto {
	return &Auto{
		HTTP: NewHTTPFetcher(nil, timeout, logger),
		File: FileFetcher{},
	}
}

// Fetch routes r to the matching fetcher.
func (a *Auto) Fetch(ctx context.Context, r Resource) ([]byte, error) {
	if strings.HasPrefix(r.Location, "http://") || strings.HasPrefix(r.Location, "https://") {
		return a.HTTP.Fetch(ctx, r)
	}
	return a.File.Fetch(ctx, r)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
