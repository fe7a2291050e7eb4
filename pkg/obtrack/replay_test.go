package obtrack

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestHistoryZipsToShorterList(t *testing.T) {
	h := &History{
		ID:      "op",
		Inputs:  []string{`"a"`, `"b"`, `"c"`},
		Outputs: []string{"A", "C"},
	}

	if h.Count() != 3 {
		t.Fatalf("Expected count from inputs (3), got %d", h.Count())
	}

	calls := h.Calls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 paired calls, got %d", len(calls))
	}

	var out bytes.Buffer
	if _, err := h.WriteTo(&out); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	expected := "op was called 3 times:\nop(\"a\") -> A\nop(\"b\") -> C\n"
	if out.String() != expected {
		t.Fatalf("Expected %q, got %q", expected, out.String())
	}
}

func TestHistoryMoreOutputsThanInputs(t *testing.T) {
	h := &History{ID: "op", Inputs: []string{"1"}, Outputs: []string{"x", "y"}}
	if len(h.Lines()) != 1 {
		t.Fatalf("Expected 1 line, got %v", h.Lines())
	}
}

func TestReplayNeverCalled(t *testing.T) {
	store, _ := newMemoryClient(t)
	reporter, err := NewReporter(store)
	if err != nil {
		t.Fatalf("Failed to create reporter: %v", err)
	}

	var out bytes.Buffer
	if err := reporter.Replay(context.Background(), "ghost", &out); err != nil {
		t.Fatalf("Failed to replay: %v", err)
	}
	if out.String() != "ghost was called 0 times:\n" {
		t.Fatalf("Expected zero-call header only, got %q", out.String())
	}
}

func TestReplayAfterFailedCall(t *testing.T) {
	store, _ := newMemoryClient(t)
	tracker := newTestTracker(t, store)
	reporter, _ := NewReporter(store)
	ctx := context.Background()

	tracked := Track(tracker, "div", func(_ context.Context, n int) (int, error) {
		if n == 0 {
			return 0, errors.New("division by zero")
		}
		return 100 / n, nil
	})

	_, _ = tracked(ctx, 4)
	_, _ = tracked(ctx, 0)
	_, _ = tracked(ctx, 5)

	h, err := reporter.History(ctx, "div")
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if h.Count() != 3 || len(h.Outputs) != 2 {
		t.Fatalf("Expected 3 inputs and 2 outputs, got %d and %d", len(h.Inputs), len(h.Outputs))
	}

	// Pairing is positional, so the output of the third call lines up with the second input
	lines := h.Lines()
	if len(lines) != 2 || lines[0] != "div(4) -> 25" || lines[1] != "div(0) -> 20" {
		t.Fatalf("Unexpected lines %v", lines)
	}
}

func TestReplayDoesNotWrite(t *testing.T) {
	store, _ := newMemoryClient(t)
	reporter, _ := NewReporter(store)

	before := store.Len()
	_ = reporter.Replay(context.Background(), "op", &bytes.Buffer{})
	if store.Len() != before {
		t.Fatalf("Expected replay to leave the store untouched, had %d keys, now %d", before, store.Len())
	}
}

func TestReplayStoreUnavailable(t *testing.T) {
	store, _ := newMemoryClient(t)
	client := &faultyClient{KeyValueClient: store, fail: failOn("LRANGE", "op:outputs")}
	reporter, _ := NewReporter(client)

	if err := reporter.Replay(context.Background(), "op", &bytes.Buffer{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable, got %v", err)
	}
}
