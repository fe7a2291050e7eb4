package obtrack

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-logr/logr"
)

func TestDefaultLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LogLevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message", F("operation", "foo"))
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Fatalf("Expected messages below warn to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[OBTRACK] ") {
		t.Fatalf("Expected prefix in output, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn message | operation=foo") {
		t.Fatalf("Expected formatted warn line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] error message") {
		t.Fatalf("Expected error line, got %q", out)
	}
}

func TestDefaultLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, LogLevelDebug)
	scoped := base.With(F("component", "tracker"))

	scoped.Info("hello", F("count", 3))
	base.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "hello | component=tracker count=3") {
		t.Fatalf("Expected scoped fields first, got %q", lines[0])
	}
	if strings.Contains(lines[1], "component=") {
		t.Fatalf("Expected With not to modify the parent logger, got %q", lines[1])
	}
}

func TestLogLevelString(t *testing.T) {
	if LogLevelDebug.String() != "DEBUG" || LogLevelError.String() != "ERROR" {
		t.Fatalf("Unexpected level names: %s, %s", LogLevelDebug, LogLevelError)
	}
}

func TestLogrLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewLogrLogger(logr.FromSlogHandler(handler)).With(F("service", "obtrack"))

	logger.Debug("call recorded", F("operation", "foo"))
	logger.Warn("call failed")
	logger.Error("store failed", F("error", errors.New("connection refused")), F("key", "foo:inputs"))

	out := buf.String()
	for _, want := range []string{
		"call recorded", "operation=foo", "service=obtrack",
		"level=warn",
		"level=ERROR", "store failed", "connection refused", "key=foo:inputs",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("Expected %q in output, got %q", want, out)
		}
	}
}

func TestLogrLoggerVerbosityFiltered(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := NewLogrLogger(logr.FromSlogHandler(handler))

	logger.Debug("hidden")
	logger.Info("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("Expected debug output to be filtered at info level, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("Expected info output, got %q", buf.String())
	}
}

func TestCreateLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	config := NewDefaultLoggingConfig(LogLevelDebug)
	config.Logger = NewWriterLogger(&buf, LogLevelDebug)
	hooks := CreateLoggingHooks(config)

	ctx := context.Background()
	hooks.invokeOnCall(ctx, "foo", 1)
	hooks.invokeOnCallError(ctx, "foo", errors.New("boom"))
	hooks.invokeOnHit(ctx, "http://x", 2)
	hooks.invokeOnMiss(ctx, "http://x", 1)
	hooks.invokeOnFetchError(ctx, "http://x", errors.New("timeout"))

	out := buf.String()
	for _, want := range []string{
		"event=call", "event=call_error", "event=resource_hit",
		"event=resource_miss", "event=fetch_error", "error=timeout",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("Expected %q in output, got %q", want, out)
		}
	}
}

func TestCreateLoggingHooksNilConfig(t *testing.T) {
	hooks := CreateLoggingHooks(nil)
	hooks.invokeOnCall(context.Background(), "foo", 1)
	if len(hooks.OnCall) != 0 {
		t.Fatal("Expected no hooks for nil config")
	}
}

func TestLoggingHookBuilder(t *testing.T) {
	var buf bytes.Buffer
	hooks := NewLoggingHookBuilder().
		WithLogger(NewWriterLogger(&buf, LogLevelDebug)).
		EnableResourceLogging().
		Build()

	if len(hooks.OnCall) != 0 || len(hooks.OnCallError) != 0 {
		t.Fatal("Expected call logging to stay disabled")
	}
	if len(hooks.OnHit) != 1 || len(hooks.OnMiss) != 1 || len(hooks.OnFetchError) != 1 {
		t.Fatal("Expected resource hooks to be registered")
	}

	all := NewLoggingHookBuilder().WithLogger(NewNoOpLogger()).EnableAllLogging().Build()
	if len(all.OnCall) != 1 || len(all.OnFetchError) != 1 {
		t.Fatal("Expected EnableAllLogging to register every hook")
	}
}

func TestTrackerLogsStoreFailures(t *testing.T) {
	store, _ := newMemoryClient(t)
	var buf bytes.Buffer
	client := &faultyClient{KeyValueClient: store, fail: failOn("INCR", "")}

	tracker, err := NewTracker(client, WithLogger(NewWriterLogger(&buf, LogLevelError)))
	if err != nil {
		t.Fatalf("Failed to create tracker: %v", err)
	}

	fn := Track(tracker, "foo", double)
	if _, err := fn(context.Background(), 2); err == nil {
		t.Fatal("Expected error when the counter cannot be incremented")
	}
	if !strings.Contains(buf.String(), "[ERROR]") || !strings.Contains(buf.String(), "foo") {
		t.Fatalf("Expected store failure logged, got %q", buf.String())
	}
}
