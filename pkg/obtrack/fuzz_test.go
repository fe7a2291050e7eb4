package obtrack

import (
	"bytes"
	"context"
	"math"
	"testing"
	"unicode/utf8"
)

// FuzzCacheRoundTrip checks that every stored scalar reads back unchanged
func FuzzCacheRoundTrip(f *testing.F) {
	f.Add("foo", int64(42), 3.25)
	f.Add("", int64(0), 0.0)
	f.Add("unicode-こんにちは", int64(math.MinInt64), math.MaxFloat64)
	f.Add("with\nnewlines\tand\ttabs", int64(math.MaxInt64), math.SmallestNonzeroFloat64)
	f.Add(" 7 ", int64(-1), math.Inf(-1))
	f.Add("\xff\xfe", int64(1), math.NaN())

	f.Fuzz(func(t *testing.T, s string, n int64, x float64) {
		cache, _ := newTestCache(t)
		ctx := context.Background()

		key, err := cache.Store(ctx, s)
		if err != nil {
			t.Fatalf("Failed to store %q: %v", s, err)
		}
		raw, found, err := cache.Get(ctx, key)
		if err != nil || !found || !bytes.Equal(raw, []byte(s)) {
			t.Fatalf("Expected bytes %q, got %q found=%v err=%v", s, raw, found, err)
		}
		if utf8.ValidString(s) {
			text, _, err := cache.GetString(ctx, key)
			if err != nil || text != s {
				t.Fatalf("Expected text %q, got %q err=%v", s, text, err)
			}
		}

		key, err = cache.Store(ctx, n)
		if err != nil {
			t.Fatalf("Failed to store %d: %v", n, err)
		}
		gotInt, _, err := cache.GetInt(ctx, key)
		if err != nil || gotInt != n {
			t.Fatalf("Expected int %d, got %d err=%v", n, gotInt, err)
		}

		key, err = cache.Store(ctx, x)
		if err != nil {
			t.Fatalf("Failed to store %v: %v", x, err)
		}
		gotFloat, _, err := cache.GetFloat(ctx, key)
		if err != nil {
			t.Fatalf("Failed to read float %v: %v", x, err)
		}
		if math.IsNaN(x) {
			if !math.IsNaN(gotFloat) {
				t.Fatalf("Expected NaN, got %v", gotFloat)
			}
		} else if gotFloat != x || math.Signbit(gotFloat) != math.Signbit(x) {
			t.Fatalf("Expected float %v, got %v", x, gotFloat)
		}

		count, err := cache.Tracker().CallCount(ctx, cache.OperationID())
		if err != nil || count != 3 {
			t.Fatalf("Expected 3 tracked stores, got %d err=%v", count, err)
		}
	})
}
