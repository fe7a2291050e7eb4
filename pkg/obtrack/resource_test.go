package obtrack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/obtrack-go/internal/kv"
	"github.com/vnykmshr/obtrack-go/pkg/compression"
)

type countingFetcher struct {
	calls   atomic.Int64
	content string
	err     error
}

func (f *countingFetcher) Fetch(_ context.Context, resource string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	if f.content != "" {
		return f.content, nil
	}
	return "<html>" + resource + "</html>", nil
}

func TestNewResourceCacheValidation(t *testing.T) {
	store, _ := newMemoryClient(t)
	fetcher := &countingFetcher{}

	if _, err := NewResourceCache(nil, fetcher.Fetch); !errors.Is(err, ErrNilClient) {
		t.Fatalf("Expected ErrNilClient, got %v", err)
	}
	if _, err := NewResourceCache(store, nil); !errors.Is(err, ErrNilFetcher) {
		t.Fatalf("Expected ErrNilFetcher, got %v", err)
	}
	if _, err := NewResourceCache(store, fetcher.Fetch, WithTTL(0)); !errors.Is(err, kv.ErrInvalidTTL) {
		t.Fatalf("Expected ErrInvalidTTL, got %v", err)
	}

	rc, err := NewResourceCache(store, fetcher.Fetch)
	if err != nil {
		t.Fatalf("Failed to create resource cache: %v", err)
	}
	if rc.TTL() != 10*time.Second {
		t.Fatalf("Expected default TTL of 10s, got %s", rc.TTL())
	}
}

func TestResourceCacheHitWithinTTL(t *testing.T) {
	store, _ := newMemoryClient(t)
	fetcher := &countingFetcher{}
	rc, _ := NewResourceCache(store, fetcher.Fetch)
	ctx := context.Background()

	first, err := rc.Get(ctx, "http://x")
	if err != nil {
		t.Fatalf("First get failed: %v", err)
	}
	second, err := rc.Get(ctx, "http://x")
	if err != nil {
		t.Fatalf("Second get failed: %v", err)
	}

	if first != "<html>http://x</html>" || second != first {
		t.Fatalf("Expected identical fetched content, got %q and %q", first, second)
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("Expected exactly one fetch, got %d", fetcher.calls.Load())
	}

	accesses, err := rc.AccessCount(ctx, "http://x")
	if err != nil || accesses != 2 {
		t.Fatalf("Expected 2 accesses, got %d err=%v", accesses, err)
	}

	if _, found, _ := store.Get(ctx, "count:http://x"); !found {
		t.Fatal("Expected access counter under count:http://x")
	}
	ttl, ok := store.TTL("content:http://x")
	if !ok || ttl != 10*time.Second {
		t.Fatalf("Expected content:http://x to expire in 10s, got %s ok=%v", ttl, ok)
	}

	stats := rc.Stats()
	if stats.Hits() != 1 || stats.Misses() != 1 || stats.Fetches() != 1 {
		t.Fatalf("Expected 1 hit, 1 miss, 1 fetch, got %d, %d, %d", stats.Hits(), stats.Misses(), stats.Fetches())
	}
}

func TestResourceCacheRefetchAfterExpiry(t *testing.T) {
	store, clock := newMemoryClient(t)
	fetcher := &countingFetcher{}
	rc, _ := NewResourceCache(store, fetcher.Fetch, WithTTL(10*time.Second))
	ctx := context.Background()

	_, _ = rc.Get(ctx, "http://x")
	clock.Advance(9 * time.Second)
	_, _ = rc.Get(ctx, "http://x")
	if fetcher.calls.Load() != 1 {
		t.Fatalf("Expected cached content before TTL, got %d fetches", fetcher.calls.Load())
	}

	clock.Advance(time.Second)
	_, _ = rc.Get(ctx, "http://x")
	if fetcher.calls.Load() != 2 {
		t.Fatalf("Expected refetch after TTL, got %d fetches", fetcher.calls.Load())
	}

	accesses, _ := rc.AccessCount(ctx, "http://x")
	if accesses != 3 {
		t.Fatalf("Expected access counter to keep increasing (3), got %d", accesses)
	}

	clock.Advance(time.Hour)
	if accesses, _ := rc.AccessCount(ctx, "http://x"); accesses != 3 {
		t.Fatalf("Expected access counter never to expire, got %d", accesses)
	}
}

func TestResourceCacheSeparateResources(t *testing.T) {
	store, _ := newMemoryClient(t)
	fetcher := &countingFetcher{}
	rc, _ := NewResourceCache(store, fetcher.Fetch)
	ctx := context.Background()

	a, _ := rc.Get(ctx, "http://a")
	b, _ := rc.Get(ctx, "http://b")
	if a == b {
		t.Fatalf("Expected distinct content per resource, got %q", a)
	}
	if fetcher.calls.Load() != 2 {
		t.Fatalf("Expected 2 fetches, got %d", fetcher.calls.Load())
	}
}

func TestResourceCacheEmptyContentIsAHit(t *testing.T) {
	store, _ := newMemoryClient(t)
	calls := 0
	rc, _ := NewResourceCache(store, func(context.Context, string) (string, error) {
		calls++
		return "", nil
	})
	ctx := context.Background()

	_, _ = rc.Get(ctx, "http://empty")
	got, err := rc.Get(ctx, "http://empty")
	if err != nil || got != "" {
		t.Fatalf("Expected empty content, got %q err=%v", got, err)
	}
	if calls != 1 {
		t.Fatalf("Expected cached empty content to be served, got %d fetches", calls)
	}
}

func TestResourceCacheFetchError(t *testing.T) {
	store, _ := newMemoryClient(t)
	fetchErr := errors.New("503 Service Unavailable")
	fetcher := &countingFetcher{err: fetchErr}

	var hookErr error
	hooks := &Hooks{}
	hooks.AddOnFetchError(func(_ context.Context, _ string, err error) { hookErr = err })

	rc, _ := NewResourceCache(store, fetcher.Fetch, WithHooks(hooks))
	ctx := context.Background()

	if _, err := rc.Get(ctx, "http://down"); !errors.Is(err, fetchErr) {
		t.Fatalf("Expected fetch error, got %v", err)
	}
	if hookErr != fetchErr {
		t.Fatalf("Expected OnFetchError hook to receive the error, got %v", hookErr)
	}
	if _, found, _ := store.Get(ctx, "content:http://down"); found {
		t.Fatal("Expected nothing cached after a failed fetch")
	}
	if accesses, _ := rc.AccessCount(ctx, "http://down"); accesses != 1 {
		t.Fatalf("Expected access counted despite failure, got %d", accesses)
	}

	// The next get retries
	_, _ = rc.Get(ctx, "http://down")
	if fetcher.calls.Load() != 2 {
		t.Fatalf("Expected failed fetches not to be cached, got %d calls", fetcher.calls.Load())
	}
	if rc.Stats().FetchErrors() != 2 {
		t.Fatalf("Expected 2 fetch errors, got %d", rc.Stats().FetchErrors())
	}
}

func TestResourceCacheStoreFailures(t *testing.T) {
	store, _ := newMemoryClient(t)
	fetcher := &countingFetcher{}
	ctx := context.Background()

	incrFails := &faultyClient{KeyValueClient: store, fail: failOn("INCR", "")}
	rc, _ := NewResourceCache(incrFails, fetcher.Fetch)
	if _, err := rc.Get(ctx, "http://x"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable from INCR, got %v", err)
	}
	if fetcher.calls.Load() != 0 {
		t.Fatal("Expected no fetch when the access counter fails")
	}

	setFails := &faultyClient{KeyValueClient: store, fail: failOn("SETEX", "")}
	rc, _ = NewResourceCache(setFails, fetcher.Fetch)
	content, err := rc.Get(ctx, "http://x")
	if !errors.Is(err, ErrStoreUnavailable) || content != "" {
		t.Fatalf("Expected empty content and ErrStoreUnavailable from SETEX, got %q %v", content, err)
	}
}

func TestResourceCacheHooks(t *testing.T) {
	store, _ := newMemoryClient(t)
	fetcher := &countingFetcher{}

	var events []string
	hooks := &Hooks{}
	hooks.AddOnHit(func(_ context.Context, r string, n int64) {
		events = append(events, "hit:"+r+":"+FormatArgs([]any{n}))
	})
	hooks.AddOnMiss(func(_ context.Context, r string, n int64) {
		events = append(events, "miss:"+r+":"+FormatArgs([]any{n}))
	})

	rc, _ := NewResourceCache(store, fetcher.Fetch, WithHooks(hooks))
	ctx := context.Background()
	_, _ = rc.Get(ctx, "u")
	_, _ = rc.Get(ctx, "u")

	got := strings.Join(events, ",")
	if got != "miss:u:1,hit:u:2" {
		t.Fatalf("Expected miss:u:1,hit:u:2, got %s", got)
	}
}

func TestResourceCacheCoalescing(t *testing.T) {
	store, _ := newMemoryClient(t)
	release := make(chan struct{})
	var fetches atomic.Int64

	rc, _ := NewResourceCache(store, func(context.Context, string) (string, error) {
		fetches.Add(1)
		<-release
		return "shared", nil
	}, WithCoalescing())

	const callers = 8
	ctx := context.Background()
	results := make(chan string, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content, err := rc.Get(ctx, "http://slow")
			if err != nil {
				t.Errorf("Get failed: %v", err)
			}
			results <- content
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for rc.Stats().Misses() < callers && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for content := range results {
		if content != "shared" {
			t.Fatalf("Expected shared content, got %q", content)
		}
	}
	if fetches.Load() != 1 {
		t.Fatalf("Expected one coalesced fetch, got %d", fetches.Load())
	}
	if accesses, _ := rc.AccessCount(ctx, "http://slow"); accesses != callers {
		t.Fatalf("Expected %d accesses, got %d", callers, accesses)
	}
}

func TestResourceCacheCompression(t *testing.T) {
	store, _ := newMemoryClient(t)
	page := strings.Repeat("<p>lorem ipsum</p>", 200)
	fetcher := &countingFetcher{content: page}

	cfg := compression.NewDefaultConfig().WithEnabled(true).WithMinSize(64)
	rc, err := NewResourceCache(store, fetcher.Fetch, WithCompression(cfg))
	if err != nil {
		t.Fatalf("Failed to create resource cache: %v", err)
	}
	ctx := context.Background()

	if got, _ := rc.Get(ctx, "http://big"); got != page {
		t.Fatal("Expected fetched content returned unchanged")
	}

	raw, _, _ := store.Get(ctx, "content:http://big")
	if len(raw) >= len(page) {
		t.Fatalf("Expected compressed payload smaller than %d bytes, got %d", len(page), len(raw))
	}

	got, err := rc.Get(ctx, "http://big")
	if err != nil || got != page {
		t.Fatalf("Expected cached content to decompress, got err=%v", err)
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("Expected one fetch, got %d", fetcher.calls.Load())
	}
}

func TestCacheAndTrack(t *testing.T) {
	store, _ := newMemoryClient(t)
	fetcher := &countingFetcher{}

	get, err := CacheAndTrack(store, fetcher.Fetch, WithTTL(time.Minute))
	if err != nil {
		t.Fatalf("Failed to decorate fetcher: %v", err)
	}

	ctx := context.Background()
	_, _ = get(ctx, "http://x")
	_, _ = get(ctx, "http://x")
	if fetcher.calls.Load() != 1 {
		t.Fatalf("Expected one fetch, got %d", fetcher.calls.Load())
	}
}
