package obtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vnykmshr/obtrack-go/internal/kv"
)

func newMemoryClient(t *testing.T) (*MemoryStore, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store, err := NewMemoryClient(&MemoryConfig{Clock: clock})
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	return store, clock
}

var errConnLost = errors.New("connection reset by peer")

// faultyClient fails the operations for which fail returns an error
type faultyClient struct {
	KeyValueClient
	fail func(op, key string) error
}

func (f *faultyClient) check(op, key string) error {
	if f.fail == nil {
		return nil
	}
	if err := f.fail(op, key); err != nil {
		return kv.Unavailable(op, key, err)
	}
	return nil
}

func (f *faultyClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := f.check("GET", key); err != nil {
		return nil, false, err
	}
	return f.KeyValueClient.Get(ctx, key)
}

func (f *faultyClient) Set(ctx context.Context, key string, value []byte) error {
	if err := f.check("SET", key); err != nil {
		return err
	}
	return f.KeyValueClient.Set(ctx, key, value)
}

func (f *faultyClient) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.check("SETEX", key); err != nil {
		return err
	}
	return f.KeyValueClient.SetEx(ctx, key, value, ttl)
}

func (f *faultyClient) Incr(ctx context.Context, key string) (int64, error) {
	if err := f.check("INCR", key); err != nil {
		return 0, err
	}
	return f.KeyValueClient.Incr(ctx, key)
}

func (f *faultyClient) RPush(ctx context.Context, key string, value string) error {
	if err := f.check("RPUSH", key); err != nil {
		return err
	}
	return f.KeyValueClient.RPush(ctx, key, value)
}

func (f *faultyClient) LRange(ctx context.Context, key string) ([]string, error) {
	if err := f.check("LRANGE", key); err != nil {
		return nil, err
	}
	return f.KeyValueClient.LRange(ctx, key)
}

func failOn(op, key string) func(string, string) error {
	return func(gotOp, gotKey string) error {
		if gotOp == op && (key == "" || gotKey == key) {
			return errConnLost
		}
		return nil
	}
}
