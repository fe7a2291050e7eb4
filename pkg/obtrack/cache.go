package obtrack

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vnykmshr/obtrack-go/internal/kv"
	"github.com/vnykmshr/obtrack-go/pkg/metrics"
)

// Cache stores scalar values under freshly generated keys and reads them
// back with a caller-chosen decoder. Nothing is kept in process; every read
// goes to the store.
type Cache struct {
	client   kv.Client
	store    Func[any, string]
	newKey   func() string
	exporter metrics.Exporter
	labels   metrics.Labels
	id       string
	tracker  *Tracker
}

// NewCache creates a typed cache over client.
//
// Store calls are instrumented under DefaultStoreOperationID unless
// WithoutInstrumentation is given. Pass WithTracker to share a tracker,
// otherwise one is created with the same options.
func NewCache(client KeyValueClient, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	o := newOptions(opts)
	c := &Cache{
		client:   client,
		newKey:   o.KeyGenerator,
		exporter: o.Exporter,
		labels:   o.labelsFor(""),
		id:       o.StoreOperationID,
	}
	if c.newKey == nil {
		c.newKey = uuid.NewString
	}

	c.store = c.put
	if !o.DisableTracking {
		tracker := o.Tracker
		if tracker == nil {
			var err error
			if tracker, err = NewTracker(client, opts...); err != nil {
				return nil, err
			}
		}
		c.tracker = tracker
		c.store = Track(tracker, c.id, c.put)
	}

	return c, nil
}

// Store writes value under a new random key and returns the key.
// Supported values are strings, byte slices, integers and floats.
func (c *Cache) Store(ctx context.Context, value any) (string, error) {
	start := time.Now()
	key, err := c.store(ctx, value)
	_ = c.exporter.RecordOperation(metrics.OperationStore, metrics.ResultOf(err), time.Since(start), c.labels)
	return key, err
}

func (c *Cache) put(ctx context.Context, value any) (string, error) {
	data, err := Encode(value)
	if err != nil {
		return "", err
	}

	key := c.newKey()
	if err := c.client.Set(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// OperationID returns the identifier Store calls are tracked under
func (c *Cache) OperationID() string {
	return c.id
}

// Tracker returns the tracker recording Store calls, nil when instrumentation is disabled
func (c *Cache) Tracker() *Tracker {
	return c.tracker
}

// Retrieve reads key and decodes it with dec.
// The boolean is false when the key does not exist.
func Retrieve[T any](ctx context.Context, c *Cache, key string, dec Decoder[T]) (T, bool, error) {
	var zero T
	start := time.Now()

	raw, ok, err := c.client.Get(ctx, key)
	switch {
	case err != nil:
		c.recordRetrieve(metrics.ResultError, start)
		return zero, false, err
	case !ok:
		c.recordRetrieve(metrics.ResultMiss, start)
		return zero, false, nil
	}

	v, err := dec.Decode(raw)
	if err != nil {
		c.recordRetrieve(metrics.ResultError, start)
		return zero, false, &DecodeError{Key: key, Decoder: dec.Name, Err: err}
	}

	c.recordRetrieve(metrics.ResultHit, start)
	return v, true, nil
}

func (c *Cache) recordRetrieve(result metrics.Result, start time.Time) {
	_ = c.exporter.RecordOperation(metrics.OperationRetrieve, result, time.Since(start), c.labels)
}

// Get returns the raw payload stored at key
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return Retrieve(ctx, c, key, Bytes)
}

// GetString returns the payload at key as text
func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	return Retrieve(ctx, c, key, Text)
}

// GetInt returns the payload at key as an integer
func (c *Cache) GetInt(ctx context.Context, key string) (int64, bool, error) {
	return Retrieve(ctx, c, key, Int)
}

// GetFloat returns the payload at key as a float
func (c *Cache) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	return Retrieve(ctx, c, key, Float)
}
