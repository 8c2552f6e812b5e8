package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// StatusError is returned for non-200 tile server responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tile HTTP %d for %s", e.StatusCode, e.URL)
}

// retryable reports whether another attempt may succeed.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// FetcherConfig configures HTTP tile downloads.
type FetcherConfig struct {
	// Timeout bounds a single HTTP request (default: 30s)
	Timeout time.Duration
	// RequestsPerSecond limits the request rate to the tile server (default: 4)
	RequestsPerSecond float64
	// Burst is the limiter bucket size (default: 2)
	Burst int
	// Retries is the number of attempts per tile (default: 3)
	Retries int
	// RetryDelay is the base back-off between attempts, growing linearly (default: 250ms)
	RetryDelay time.Duration
	// UserAgent is sent with every request
	UserAgent string
	// Client overrides the HTTP client; Timeout is ignored when set
	Client *http.Client
}

// DefaultFetcherConfig returns sensible defaults.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 4,
		Burst:             2,
		Retries:           3,
		RetryDelay:        250 * time.Millisecond,
		UserAgent:         "gpx2png/1.0 (+https://www.openstreetmap.org/copyright)",
	}
}

// Fetcher downloads tiles over HTTP with rate limiting and retries.
type Fetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	userAgent  string
	retries    int
	retryDelay time.Duration

	requests atomic.Int64
}

// NewFetcher creates a fetcher; zero config fields take their defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	def := DefaultFetcherConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst < 1 {
		cfg.Burst = def.Burst
	}
	if cfg.Retries < 1 {
		cfg.Retries = def.Retries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Fetcher{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		userAgent:  cfg.UserAgent,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
	}
}

// Requests returns the number of HTTP requests issued so far.
func (f *Fetcher) Requests() int64 {
	return f.requests.Load()
}

// Fetch GETs url and returns the body. Transport errors, 429 and 5xx are
// retried; other status codes fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * f.retryDelay):
			}
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, se
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", f.retries, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.requests.Add(1)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) // nolint:errcheck
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
