package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/crosswalk/internal/logging"
)

// DefaultFetchTimeout applies when NewFetcher is given no client.
var DefaultFetchTimeout = 5 * time.Minute

// Source retrieves the raw crosswalk export.
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Fetcher downloads the crosswalk over HTTP. It performs exactly one GET per
// call and never retries.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewFetcher creates a Fetcher. A nil client gets DefaultFetchTimeout.
// maxBytes <= 0 disables the size cap.
func NewFetcher(client *http.Client, userAgent string, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// Fetch downloads url and returns the raw body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	logger := logging.WithFields(ctx, "url", url)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch source: build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch source: unexpected status %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("fetch source: read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch source: response too large (over %d bytes)", f.maxBytes)
	}

	logger.Info("source downloaded",
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return data, nil
}
