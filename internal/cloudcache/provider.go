package cloudcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"mediavault/internal/httprange"
	"mediavault/internal/services"
)

// HTTPProvider serves remote file bytes from an HTTP endpoint that exposes
// files by id and honors Range requests.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider builds a provider for the given base URL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		// No overall timeout: segment-sized streams are long-lived. Dial and
		// header deadlines come from the default transport.
		client: &http.Client{Timeout: 0},
	}
}

// NewHTTPProviderWithClient injects an explicit client, used by tests.
func NewHTTPProviderWithClient(baseURL string, client *http.Client) *HTTPProvider {
	return &HTTPProvider{baseURL: baseURL, client: client}
}

// GetMetadata reports the total size of a remote file.
func (p *HTTPProvider) GetMetadata(ctx context.Context, fileID string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.fileURL(fileID), nil)
	if err != nil {
		return 0, fmt.Errorf("build metadata request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch metadata for %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, services.Wrap(services.ErrNotFound, "cloudcache", "metadata", fmt.Sprintf("remote file %s not found", fileID), nil)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("metadata for %s: unexpected status %d", fileID, resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("metadata for %s: remote did not report a length", fileID)
	}
	return resp.ContentLength, nil
}

// GetStream opens the remote file, optionally restricted to a byte window.
func (p *HTTPProvider) GetStream(ctx context.Context, fileID string, rng *httprange.Range) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.fileURL(fileID), nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	if rng != nil {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stream for %s: %w", fileID, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, services.Wrap(services.ErrNotFound, "cloudcache", "stream", fmt.Sprintf("remote file %s not found", fileID), nil)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("stream for %s: unexpected status %d", fileID, resp.StatusCode)
	}
}

func (p *HTTPProvider) fileURL(fileID string) string {
	return p.baseURL + "/" + url.PathEscape(fileID)
}
