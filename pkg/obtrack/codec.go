package obtrack

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Encode converts a scalar into the payload Cache.Store writes.
// Numbers use their decimal text form, the same representation the store's
// INCR and redis-cli use, so stored integers remain usable as counters.
func Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return append([]byte(nil), v...), nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}

// Decoder converts a raw payload into a typed value
type Decoder[T any] struct {
	// Name identifies the decoder in DecodeError
	Name string

	Decode func(raw []byte) (T, error)
}

// NewDecoder creates a named decoder from fn
func NewDecoder[T any](name string, fn func(raw []byte) (T, error)) Decoder[T] {
	return Decoder[T]{Name: name, Decode: fn}
}

var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

// Built-in decoders
var (
	// Bytes returns the payload unchanged
	Bytes = NewDecoder("bytes", func(raw []byte) ([]byte, error) {
		return raw, nil
	})

	// Text returns the payload as a string, rejecting invalid UTF-8
	Text = NewDecoder("text", func(raw []byte) (string, error) {
		if !utf8.Valid(raw) {
			return "", errInvalidUTF8
		}
		return string(raw), nil
	})

	// Int parses a base-10 64-bit integer, ignoring surrounding whitespace
	Int = NewDecoder("int", func(raw []byte) (int64, error) {
		return strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	})

	// Float parses a 64-bit floating point number, ignoring surrounding whitespace
	Float = NewDecoder("float", func(raw []byte) (float64, error) {
		return strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	})
)
