package obtrack

import (
	"context"
	"fmt"
	"time"

	"github.com/vnykmshr/obtrack-go/internal/kv"
	"github.com/vnykmshr/obtrack-go/internal/singleflight"
	"github.com/vnykmshr/obtrack-go/pkg/compression"
	"github.com/vnykmshr/obtrack-go/pkg/metrics"
)

// Fetcher retrieves the content of a remote resource, e.g. the body of a URL
type Fetcher func(ctx context.Context, resource string) (string, error)

// ResourceCache counts accesses per resource and keeps fetched content in
// the store for a fixed TTL. Expiry is left to the store.
//
// The lookup and the write after a miss are separate store commands, so two
// concurrent misses may both fetch; the last write wins. WithCoalescing
// removes the duplicate within one process.
type ResourceCache struct {
	client   kv.Client
	fetch    Fetcher
	ttl      time.Duration
	hooks    *Hooks
	logger   Logger
	stats    *Stats
	exporter metrics.Exporter
	labels   metrics.Labels
	sf       *singleflight.Group[string, string]
	codec    *compression.Codec
}

// NewResourceCache wraps fetch with an access-counting TTL cache
func NewResourceCache(client KeyValueClient, fetch Fetcher, opts ...Option) (*ResourceCache, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if fetch == nil {
		return nil, ErrNilFetcher
	}

	o := newOptions(opts)
	if o.TTL <= 0 {
		return nil, fmt.Errorf("%w: %s", kv.ErrInvalidTTL, o.TTL)
	}

	rc := &ResourceCache{
		client:   client,
		fetch:    fetch,
		ttl:      o.TTL,
		hooks:    o.Hooks,
		logger:   o.Logger,
		stats:    o.Stats,
		exporter: o.Exporter,
		labels:   o.labelsFor(""),
	}

	if o.Coalesce {
		rc.sf = &singleflight.Group[string, string]{}
	}

	if o.Compression != nil && o.Compression.Enabled {
		codec, err := compression.NewCodec(o.Compression)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize compression: %w", err)
		}
		rc.codec = codec
	}

	return rc, nil
}

// CacheAndTrack returns fetch decorated with a ResourceCache
func CacheAndTrack(client KeyValueClient, fetch Fetcher, opts ...Option) (Fetcher, error) {
	rc, err := NewResourceCache(client, fetch, opts...)
	if err != nil {
		return nil, err
	}
	return rc.Fetcher(), nil
}

// Get returns the content of resource, fetching it when no live copy is stored.
// The access counter is incremented on every call, hit or miss.
func (rc *ResourceCache) Get(ctx context.Context, resource string) (string, error) {
	start := time.Now()

	accesses, err := rc.client.Incr(ctx, kv.AccessKey(resource))
	if err != nil {
		rc.record(metrics.OperationResourceGet, metrics.ResultError, start)
		return "", fmt.Errorf("count access to %s: %w", resource, err)
	}

	content, found, err := rc.lookup(ctx, resource)
	if err != nil {
		rc.record(metrics.OperationResourceGet, metrics.ResultError, start)
		return "", err
	}
	if found {
		rc.stats.incHits()
		rc.hooks.invokeOnHit(ctx, resource, accesses)
		rc.record(metrics.OperationResourceGet, metrics.ResultHit, start)
		return content, nil
	}

	rc.stats.incMisses()
	rc.hooks.invokeOnMiss(ctx, resource, accesses)

	content, err = rc.load(ctx, resource)
	if err != nil {
		rc.record(metrics.OperationResourceGet, metrics.ResultError, start)
		return "", err
	}

	rc.record(metrics.OperationResourceGet, metrics.ResultMiss, start)
	return content, nil
}

// lookup reads the cached content. Presence decides a hit, so an empty
// string that was cached is served like any other content.
func (rc *ResourceCache) lookup(ctx context.Context, resource string) (string, bool, error) {
	key := kv.ContentKey(resource)

	raw, ok, err := rc.client.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("read cached %s: %w", resource, err)
	}
	if !ok {
		return "", false, nil
	}

	if rc.codec != nil {
		if raw, err = rc.codec.Decode(raw); err != nil {
			return "", false, &DecodeError{Key: key, Decoder: rc.codec.Name(), Err: err}
		}
	}
	return string(raw), true, nil
}

func (rc *ResourceCache) load(ctx context.Context, resource string) (string, error) {
	if rc.sf == nil {
		return rc.fetchAndStore(ctx, resource)
	}

	// The shared fetch must not be cut short by the first caller's cancellation
	shared := context.WithoutCancel(ctx)
	content, err, _ := rc.sf.DoContext(ctx, resource, func() (string, error) {
		return rc.fetchAndStore(shared, resource)
	})
	return content, err
}

func (rc *ResourceCache) fetchAndStore(ctx context.Context, resource string) (string, error) {
	rc.stats.incFetches()
	rc.stats.incInFlight()
	defer rc.stats.decInFlight()

	start := time.Now()
	content, err := rc.fetch(ctx, resource)
	rc.record(metrics.OperationFetch, metrics.ResultOf(err), start)
	if err != nil {
		rc.stats.incFetchErrors()
		rc.hooks.invokeOnFetchError(ctx, resource, err)
		return "", err
	}

	payload := []byte(content)
	if rc.codec != nil {
		if payload, err = rc.codec.Encode(payload); err != nil {
			return "", fmt.Errorf("encode %s: %w", resource, err)
		}
	}

	if err := rc.client.SetEx(ctx, kv.ContentKey(resource), payload, rc.ttl); err != nil {
		rc.logger.Error("Failed to cache resource content", F("resource", resource), F("error", err))
		return "", fmt.Errorf("cache content of %s: %w", resource, err)
	}

	return content, nil
}

// AccessCount returns how many times resource was requested through Get
func (rc *ResourceCache) AccessCount(ctx context.Context, resource string) (int64, error) {
	return readCounter(ctx, rc.client, kv.AccessKey(resource))
}

// Fetcher returns Get as a Fetcher, so the cache can stand in for the
// function it wraps
func (rc *ResourceCache) Fetcher() Fetcher {
	return rc.Get
}

// TTL returns how long fetched content stays cached
func (rc *ResourceCache) TTL() time.Duration {
	return rc.ttl
}

// Stats returns the cache's process-local statistics
func (rc *ResourceCache) Stats() *Stats {
	return rc.stats
}

func (rc *ResourceCache) record(operation metrics.Operation, result metrics.Result, start time.Time) {
	_ = rc.exporter.RecordOperation(operation, result, time.Since(start), rc.labels)
}
