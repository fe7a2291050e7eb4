package kv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client is the subset of key-value store operations the tracking layer consumes.
// Implementations must make Incr and RPush atomic at the store.
type Client interface {
	// Get returns the payload stored at key.
	// The boolean is false when the key does not exist; that is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set overwrites the payload at key and clears any expiry
	Set(ctx context.Context, key string, value []byte) error

	// SetEx overwrites the payload at key and expires it after ttl
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Incr atomically increments the integer at key and returns the new value.
	// A missing key is treated as 0.
	Incr(ctx context.Context, key string) (int64, error)

	// RPush appends value to the list at key
	RPush(ctx context.Context, key string, value string) error

	// LRange returns the whole list at key, oldest first.
	// A missing key yields an empty list.
	LRange(ctx context.Context, key string) ([]string, error)
}

var (
	// ErrUnavailable reports that the store could not be reached or the
	// connection was lost mid-operation.
	ErrUnavailable = errors.New("kv: store unavailable")

	// ErrRejected reports that the store answered but refused the command,
	// e.g. INCR on a non-integer value or a list operation on a plain string.
	ErrRejected = errors.New("kv: command rejected")

	// ErrInvalidTTL is returned by SetEx for non-positive durations
	ErrInvalidTTL = errors.New("kv: ttl must be positive")
)

// Unavailable wraps a transport failure so callers can match it with ErrUnavailable
func Unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrUnavailable, op, key, err)
}

// Rejected wraps a command refusal so callers can match it with ErrRejected
func Rejected(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrRejected, op, key, err)
}

// IsContextErr reports whether err comes from context cancellation or deadline
func IsContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Key layout shared by the tracker, the reporter and the resource cache.

// CounterKey is the key holding the call counter of an operation
func CounterKey(id string) string { return id }

// InputsKey is the list holding serialized call arguments of an operation
func InputsKey(id string) string { return id + ":inputs" }

// OutputsKey is the list holding serialized call results of an operation
func OutputsKey(id string) string { return id + ":outputs" }

// AccessKey is the counter of accesses to a cached resource
func AccessKey(resource string) string { return "count:" + resource }

// ContentKey is the expiring entry holding a cached resource's content
func ContentKey(resource string) string { return "content:" + resource }
