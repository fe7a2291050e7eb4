// Package fetch provides an HTTP implementation of obtrack.Fetcher with
// retries on transient failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrStatus is returned when the final response is not 2xx
	ErrStatus = errors.New("fetch: unexpected status")

	// ErrBodyTooLarge is returned when a response body is longer than Config.MaxBodySize
	ErrBodyTooLarge = errors.New("fetch: response body too large")
)

// StatusError describes a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Config configures an HTTPFetcher
type Config struct {
	// RetryMax is how many times a failed request is retried
	// Default: 3
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the backoff between attempts
	// Default: 100ms and 2s
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Timeout bounds a single attempt
	// Default: 10s
	Timeout time.Duration

	// MaxBodySize is the longest response body accepted. Longer bodies fail
	// with ErrBodyTooLarge rather than being truncated.
	// Default: 10 MiB
	MaxBodySize int64

	// Transport is the underlying round tripper (optional)
	Transport http.RoundTripper

	// Logger receives one entry per retried attempt
	Logger logr.Logger
}

// NewDefaultConfig returns the default fetcher configuration
func NewDefaultConfig() *Config {
	return &Config{
		RetryMax:     3,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Timeout:      10 * time.Second,
		MaxBodySize:  10 << 20,
		Logger:       logr.Discard(),
	}
}

// HTTPFetcher retrieves the body of a URL with GET
type HTTPFetcher struct {
	client      *retryablehttp.Client
	maxBodySize int64
}

// New creates an HTTPFetcher
func New(config *Config) *HTTPFetcher {
	if config == nil {
		config = NewDefaultConfig()
	}
	defaults := NewDefaultConfig()
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaults.MaxBodySize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RetryWaitMin <= 0 {
		config.RetryWaitMin = defaults.RetryWaitMin
	}
	if config.RetryWaitMax < config.RetryWaitMin {
		config.RetryWaitMax = config.RetryWaitMin
	}
	logger := config.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	client := &retryablehttp.Client{
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
		HTTPClient:   &http.Client{Transport: config.Transport, Timeout: config.Timeout},
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
		RetryMax:     config.RetryMax,
	}
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		retry, retryErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		if retry {
			if retryErr != nil {
				err = retryErr
			}
			if resp != nil && resp.Request != nil {
				logger.Error(err, "retrying request", "url", resp.Request.URL, "status", resp.StatusCode)
			} else {
				logger.Error(err, "retrying request")
			}
		}
		return retry, retryErr
	}

	return &HTTPFetcher{client: client, maxBodySize: config.MaxBodySize}
}

// Fetch returns the body of url. Responses outside 2xx, after retries, are
// reported as a *StatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", url, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return "", fmt.Errorf("read body of %s: %w (limit %d bytes)", url, ErrBodyTooLarge, f.maxBodySize)
	}
	return string(body), nil
}
