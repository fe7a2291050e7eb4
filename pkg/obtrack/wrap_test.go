package obtrack

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWrapFuncWithContext(t *testing.T) {
	store, _ := newMemoryClient(t)
	tracker := newTestTracker(t, store)
	ctx := context.Background()

	greet := func(_ context.Context, name string, times int) (string, error) {
		return strings.Repeat("hi "+name+" ", times), nil
	}
	tracked := WrapFunc("greet", greet, tracker.Middlewares()...)

	got, err := tracked(ctx, "bob", 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "hi bob hi bob " {
		t.Fatalf("Expected result unchanged, got %q", got)
	}

	inputs, _ := store.LRange(ctx, "greet:inputs")
	if len(inputs) != 1 || inputs[0] != `"bob", 2` {
		t.Fatalf(`Expected inputs ["bob", 2] without the context, got %v`, inputs)
	}
}

func TestWrapFuncWithoutContext(t *testing.T) {
	store, _ := newMemoryClient(t)
	tracker := newTestTracker(t, store)

	parse := func(s string) (int, error) {
		if s == "" {
			return 0, errors.New("empty")
		}
		return len(s), nil
	}
	tracked := WrapFunc("parse", parse, tracker.Middlewares()...)

	if n, err := tracked("abc"); err != nil || n != 3 {
		t.Fatalf("Expected 3, got %d err=%v", n, err)
	}
	if n, err := tracked(""); err == nil || n != 0 {
		t.Fatalf("Expected zero value and error, got %d err=%v", n, err)
	}

	count, _ := tracker.CallCount(context.Background(), "parse")
	if count != 2 {
		t.Fatalf("Expected 2 calls, got %d", count)
	}
}

func TestWrapFuncMultipleResults(t *testing.T) {
	store, _ := newMemoryClient(t)
	tracker := newTestTracker(t, store)
	ctx := context.Background()

	split := func(_ context.Context, s string) (string, string, error) {
		head, tail, _ := strings.Cut(s, ":")
		return head, tail, nil
	}
	tracked := WrapFunc("split", split, tracker.Middlewares()...)

	head, tail, err := tracked(ctx, "a:b")
	if err != nil || head != "a" || tail != "b" {
		t.Fatalf("Expected a, b, got %s, %s err=%v", head, tail, err)
	}

	outputs, _ := store.LRange(ctx, "split:outputs")
	if len(outputs) != 1 || outputs[0] != `("a", "b")` {
		t.Fatalf(`Expected outputs [("a", "b")], got %v`, outputs)
	}
}

func TestWrapFuncErrorOnly(t *testing.T) {
	store, _ := newMemoryClient(t)
	tracker := newTestTracker(t, store)

	var seen []string
	record := func(_ context.Context, s string) error {
		seen = append(seen, s)
		return nil
	}
	tracked := WrapFunc("record", record, tracker.Middlewares()...)

	if err := tracked(context.Background(), "x"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("Expected wrapped function to run once, got %d", len(seen))
	}

	outputs, _ := store.LRange(context.Background(), "record:outputs")
	if len(outputs) != 1 || outputs[0] != "nil" {
		t.Fatalf("Expected outputs [nil], got %v", outputs)
	}
}

func TestWrapFuncNilArguments(t *testing.T) {
	store, _ := newMemoryClient(t)
	tracker := newTestTracker(t, store)

	describe := func(p *point, m map[string]int) (string, error) {
		if p == nil && m == nil {
			return "nothing", nil
		}
		return "something", nil
	}
	tracked := WrapFunc("describe", describe, tracker.Middlewares()...)

	got, err := tracked(nil, nil)
	if err != nil || got != "nothing" {
		t.Fatalf("Expected nothing, got %q err=%v", got, err)
	}
}

func TestWrapFuncStoreFailure(t *testing.T) {
	store, _ := newMemoryClient(t)
	client := &faultyClient{KeyValueClient: store, fail: failOn("RPUSH", "")}
	tracker := newTestTracker(t, client)

	tracked := WrapFunc("op", func(s string) (string, error) { return s, nil }, tracker.Middlewares()...)
	if _, err := tracked("x"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable, got %v", err)
	}
}

func TestValidateWrappableFunction(t *testing.T) {
	tests := []struct {
		name    string
		fn      any
		wantErr bool
	}{
		{"valid", func(int) (int, error) { return 0, nil }, false},
		{"error only", func() error { return nil }, false},
		{"not a function", 42, true},
		{"nil", nil, true},
		{"nil func", (func() error)(nil), true},
		{"no error return", func(int) int { return 0 }, true},
		{"no returns", func() {}, true},
		{"variadic", func(...int) error { return nil }, true},
		{"error not last", func() (error, int) { return nil, 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWrappableFunction(tt.fn)
			if tt.wantErr && err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
		})
	}
}

func TestWrapFuncPanicsOnInvalidFunction(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic for function without error return")
		}
	}()

	WrapFunc("bad", func(int) int { return 0 })
}
