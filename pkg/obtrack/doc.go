// Package obtrack provides call instrumentation and caching on top of a
// key-value store such as Redis.
//
// # Overview
//
// Three components share one store client:
//
//   - Cache stores scalar values under random UUID keys and reads them back
//     with a decoder (Bytes, Text, Int, Float).
//   - Tracker wraps operations with middlewares that count every invocation
//     (INCR on the operation id) and append the serialized arguments and
//     result to the lists "<id>:inputs" and "<id>:outputs".
//   - Reporter reads those lists back and replays the history.
//
// ResourceCache wraps a fetch function with a per-resource access counter
// ("count:<resource>") and a store-expired content entry ("content:<resource>").
//
// # Basic Usage
//
//	svc, err := obtrack.New(obtrack.NewDefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	key, err := svc.Cache().Store(ctx, "foo")
//	value, found, err := svc.Cache().GetString(ctx, key)
//
//	// Cache.store was called 1 times:
//	// Cache.store("foo") -> 3f1c...
//	err = svc.Reporter().Replay(ctx, obtrack.DefaultStoreOperationID, os.Stdout)
//
// # Instrumenting Functions
//
// Any operation can be tracked under a caller-chosen identifier:
//
//	lookup := func(ctx context.Context, id int) (string, error) { ... }
//	tracked := obtrack.Track(svc.Tracker(), "users.lookup", lookup)
//
// WrapFunc does the same for arbitrary signatures via reflection, and Wrap
// composes individual middlewares (CountCalls, CallHistory, Observe) in any
// order, the first being outermost.
//
// A failing operation still advances the counter and the inputs list but
// writes no output, so the history lists may differ in length. The reporter
// pairs entries up to the shorter list.
//
// # Resource Caching
//
//	pages, err := svc.NewResourceCache(fetcher.Fetch)
//	body, err := pages.Get(ctx, "http://example.com")
//
// Within the TTL (10 seconds by default) repeated gets do not call the
// fetcher. WithCoalescing shares one fetch among concurrent misses in the
// same process.
//
// # Configuration
//
// LoadConfigFromEnv reads OBTRACK_STORE, OBTRACK_REDIS_HOST,
// OBTRACK_REDIS_PORT, OBTRACK_REDIS_PASSWORD, OBTRACK_REDIS_DB,
// OBTRACK_REDIS_KEY_PREFIX, OBTRACK_MEMORY_CAPACITY, OBTRACK_RESOURCE_TTL
// and OBTRACK_STORE_OPERATION_ID.
//
// # Errors
//
// Store failures match ErrStoreUnavailable or ErrStoreRejected with
// errors.Is and are never retried. Missing keys are reported as
// found == false, not as errors. Payloads a decoder cannot convert yield a
// *DecodeError matching ErrDecode.
package obtrack
