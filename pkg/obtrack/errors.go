package obtrack

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/vnykmshr/obtrack-go/internal/kv"
)

var (
	// ErrStoreUnavailable is returned when the key-value store cannot be
	// reached or the connection is lost. It is never retried internally.
	ErrStoreUnavailable = kv.ErrUnavailable

	// ErrStoreRejected is returned when the store refuses a command,
	// e.g. incrementing a key that does not hold an integer.
	ErrStoreRejected = kv.ErrRejected

	// ErrDecode is matched by every *DecodeError
	ErrDecode = errors.New("obtrack: decode failed")

	// ErrUnsupportedValue is returned by Cache.Store for values without a scalar encoding
	ErrUnsupportedValue = errors.New("obtrack: unsupported value type")

	// ErrNilClient is returned when a component is built without a store client
	ErrNilClient = errors.New("obtrack: key-value client is required")

	// ErrNilFetcher is returned when a ResourceCache is built without a fetch function
	ErrNilFetcher = errors.New("obtrack: fetcher is required")

	// ErrTypeMismatch is matched by every *TypeMismatchError
	ErrTypeMismatch = errors.New("obtrack: type mismatch")
)

// DecodeError reports a stored payload that the requested decoder could not convert
type DecodeError struct {
	Key     string
	Decoder string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("obtrack: decode %q as %s: %v", e.Key, e.Decoder, e.Err)
}

// Unwrap exposes both ErrDecode and the decoder's own error
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// TypeMismatchError reports a middleware that replaced an operation's
// argument or result with a value of another type
type TypeMismatchError struct {
	ID    string
	Value string // "argument" or "result"
	Got   any
	Want  reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("obtrack: %s %s is %T, want %s", e.ID, e.Value, e.Got, e.Want)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }
