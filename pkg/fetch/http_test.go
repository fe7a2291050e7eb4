package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() *Config {
	config := NewDefaultConfig()
	config.RetryMax = 2
	config.RetryWaitMin = time.Millisecond
	config.RetryWaitMax = 5 * time.Millisecond
	return config
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>" + r.URL.Path + "</html>"))
	}))
	defer server.Close()

	body, err := New(testConfig()).Fetch(context.Background(), server.URL+"/page")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body != "<html>/page</html>" {
		t.Fatalf("Expected page body, got %q", body)
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := New(testConfig()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if body != "ok" || attempts.Load() != 3 {
		t.Fatalf("Expected ok after 3 attempts, got %q after %d", body, attempts.Load())
	}
}

func TestFetchRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(testConfig()).Fetch(context.Background(), server.URL)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("Expected 502 StatusError, got %v", err)
	}
	if !errors.Is(err, ErrStatus) {
		t.Fatal("Expected error to match ErrStatus")
	}
	if attempts.Load() != 3 {
		t.Fatalf("Expected 1 attempt plus 2 retries, got %d", attempts.Load())
	}
}

func TestFetchClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := New(testConfig()).Fetch(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("Expected 404 error, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Fatalf("Expected no retries for 404, got %d attempts", attempts.Load())
	}
}

func TestFetchBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	config := testConfig()
	config.MaxBodySize = 10
	body, err := New(config).Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("Expected ErrBodyTooLarge, got body of %d bytes err=%v", len(body), err)
	}
	if body != "" {
		t.Fatalf("Expected empty body on overflow, got %d bytes", len(body))
	}

	config.MaxBodySize = 100
	body, err = New(config).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch at exactly the limit failed: %v", err)
	}
	if len(body) != 100 {
		t.Fatalf("Expected 100 bytes, got %d", len(body))
	}
}

func TestFetchCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(testConfig()).Fetch(ctx, server.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	if _, err := New(nil).Fetch(context.Background(), "://bad"); err == nil {
		t.Fatal("Expected error for invalid URL")
	}
}
