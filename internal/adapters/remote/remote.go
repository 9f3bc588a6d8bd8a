package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Amund211/imagecache/internal/domain"
	"github.com/Amund211/imagecache/internal/logging"
	"github.com/Amund211/imagecache/internal/ratelimiting"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const USER_AGENT = "imagecache/0.1.0 (+https://github.com/Amund211/imagecache)"

// Larger responses are rejected instead of being decoded
const maxImageBytes = 32 << 20

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Fetcher struct {
	httpClient  HttpClient
	rateLimiter ratelimiting.RateLimiter
}

func New(httpClient HttpClient, rateLimiter ratelimiting.RateLimiter) *Fetcher {
	return &Fetcher{
		httpClient:  httpClient,
		rateLimiter: rateLimiter,
	}
}

// NewHTTPClient returns a client whose requests are traced and measured by OpenTelemetry.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Fetch downloads the image at rawURL.
//
// Every failure wraps domain.ErrNetwork. rawURL must be well formed, see domain.ParseRemoteURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	logger := logging.FromContext(ctx)

	parsedURL, err := domain.ParseImageURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	err = f.rateLimiter.Wait(ctx, ratelimiting.HostKeyFunc(parsedURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", domain.ErrNetwork, err)
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "image/png,image/jpeg,image/webp,image/*;q=0.8")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %w", domain.ErrNetwork, err)
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", domain.ErrNetwork, err)
	}
	logger.InfoContext(ctx, "remote image request completed", "status", resp.StatusCode, "bytes", len(data), "duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status code %d", domain.ErrNetwork, resp.StatusCode)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrNetwork, maxImageBytes)
	}

	return data, nil
}
