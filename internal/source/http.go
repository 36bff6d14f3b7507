package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/config"
)

// endpoint is one installation's compiled source target.
type endpoint struct {
	url     string
	pattern *regexp.Regexp
}

// HTTPReader fetches readings over HTTP. When an endpoint declares a
// pattern, the first capture group (or the whole match) of the response
// body is the raw reading; otherwise the whole body is.
type HTTPReader struct {
	client    *http.Client
	endpoints map[string]endpoint
}

// NewHTTPReader compiles the configured installation endpoints.
func NewHTTPReader(installations []config.Installation, timeout time.Duration) (*HTTPReader, error) {
	endpoints := make(map[string]endpoint, len(installations))
	for _, inst := range installations {
		ep := endpoint{url: inst.SourceURL}
		if inst.SourcePattern != "" {
			re, err := regexp.Compile(inst.SourcePattern)
			if err != nil {
				return nil, fmt.Errorf("invalid source pattern for %s: %w", inst.Name, err)
			}
			ep.pattern = re
		}
		endpoints[inst.Name] = ep
	}

	return &HTTPReader{
		client:    &http.Client{Timeout: timeout},
		endpoints: endpoints,
	}, nil
}

// Read fetches the raw reading for one installation.
func (r *HTTPReader) Read(ctx context.Context, installation string) (string, error) {
	ep, ok := r.endpoints[installation]
	if !ok {
		return "", ErrUnknownInstallation
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch reading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if ep.pattern == nil {
		return string(body), nil
	}

	m := ep.pattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("pattern matched nothing in source document")
	}
	if len(m) > 1 {
		return string(m[1]), nil
	}
	return string(m[0]), nil
}

// Close releases the underlying transport connections.
func (r *HTTPReader) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
