package obtrack

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/vnykmshr/obtrack-go/internal/kv"
	"github.com/vnykmshr/obtrack-go/pkg/metrics"
)

// Invoker is the uniform call shape middlewares operate on.
// args never include the context.
type Invoker func(ctx context.Context, args []any) (any, error)

// Middleware decorates the invoker of the operation identified by id
type Middleware func(id string, next Invoker) Invoker

// Chain applies middlewares to inv. The first middleware is the outermost.
func Chain(id string, inv Invoker, mws ...Middleware) Invoker {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			inv = mws[i](id, inv)
		}
	}
	return inv
}

// Func is a single-argument operation that can be instrumented with Wrap
type Func[A, R any] func(ctx context.Context, arg A) (R, error)

// Wrap returns fn decorated with mws under the stable identifier id
func Wrap[A, R any](id string, fn Func[A, R], mws ...Middleware) Func[A, R] {
	if id == "" {
		panic("obtrack.Wrap: operation id is required")
	}

	inv := Chain(id, func(ctx context.Context, args []any) (any, error) {
		var arg A
		if len(args) > 0 && args[0] != nil {
			var ok bool
			if arg, ok = args[0].(A); !ok {
				return nil, &TypeMismatchError{ID: id, Value: "argument", Got: args[0], Want: reflect.TypeFor[A]()}
			}
		}
		return fn(ctx, arg)
	}, mws...)

	return func(ctx context.Context, arg A) (R, error) {
		var zero R
		out, err := inv(ctx, []any{arg})
		if err != nil {
			return zero, err
		}
		if out == nil {
			return zero, nil
		}
		result, ok := out.(R)
		if !ok {
			return zero, &TypeMismatchError{ID: id, Value: "result", Got: out, Want: reflect.TypeFor[R]()}
		}
		return result, nil
	}
}

// Tracker persists call counters and call histories in the key-value store.
//
// Counters rely on the store's atomic INCR, so the count equals the number
// of invocations under any number of concurrent callers. History appends are
// atomic per entry; inputs and outputs of interleaved concurrent calls are
// not linked to each other.
type Tracker struct {
	client       kv.Client
	hooks        *Hooks
	logger       Logger
	stats        *Stats
	exporter     metrics.Exporter
	opts         *Options
	formatArgs   func(args []any) string
	formatResult Formatter
}

// NewTracker creates a tracker storing its data through client
func NewTracker(client KeyValueClient, opts ...Option) (*Tracker, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	o := newOptions(opts)
	return &Tracker{
		client:       client,
		hooks:        o.Hooks,
		logger:       o.Logger,
		stats:        o.Stats,
		exporter:     o.Exporter,
		opts:         o,
		formatArgs:   o.FormatArgs,
		formatResult: o.FormatResult,
	}, nil
}

// CountCalls increments the operation's counter before every call. A failed
// increment aborts the call; the operation is not invoked.
func (t *Tracker) CountCalls() Middleware {
	return func(id string, next Invoker) Invoker {
		key := kv.CounterKey(id)
		return func(ctx context.Context, args []any) (any, error) {
			count, err := t.client.Incr(ctx, key)
			if err != nil {
				t.logger.Error("Failed to increment call counter", F("operation", id), F("error", err))
				return nil, fmt.Errorf("count call to %s: %w", id, err)
			}
			t.hooks.invokeOnCall(ctx, id, count)

			out, err := next(ctx, args)
			if err != nil {
				t.hooks.invokeOnCallError(ctx, id, err)
			}
			return out, err
		}
	}
}

// CallHistory appends the serialized arguments to the inputs list, invokes
// the operation and appends the serialized result to the outputs list.
//
// When the operation fails its error is returned unchanged and nothing is
// appended to outputs, so the two lists differ in length from then on.
func (t *Tracker) CallHistory() Middleware {
	return func(id string, next Invoker) Invoker {
		inputs, outputs := kv.InputsKey(id), kv.OutputsKey(id)
		return func(ctx context.Context, args []any) (any, error) {
			if err := t.client.RPush(ctx, inputs, t.formatArgs(args)); err != nil {
				t.logger.Error("Failed to record call input", F("operation", id), F("error", err))
				return nil, fmt.Errorf("record input of %s: %w", id, err)
			}

			out, err := next(ctx, args)
			if err != nil {
				return nil, err
			}

			if err := t.client.RPush(ctx, outputs, t.formatResult(out)); err != nil {
				t.logger.Error("Failed to record call output", F("operation", id), F("error", err))
				return nil, fmt.Errorf("record output of %s: %w", id, err)
			}
			return out, nil
		}
	}
}

// Observe records duration and outcome of every call to the metrics
// exporter and to Stats. Call metrics are named after the operation id.
func (t *Tracker) Observe() Middleware {
	return func(id string, next Invoker) Invoker {
		labels := t.opts.labelsFor(id)
		return func(ctx context.Context, args []any) (any, error) {
			start := time.Now()
			out, err := next(ctx, args)

			t.stats.incCalls()
			if err != nil {
				t.stats.incCallErrors()
				t.logger.Debug("Instrumented call returned error", F("operation", id), F("error", err))
			}
			_ = t.exporter.RecordOperation(metrics.OperationCall, metrics.ResultOf(err), time.Since(start), labels)

			return out, err
		}
	}
}

// Middlewares returns the full instrumentation stack, outermost first:
// Observe, CountCalls, CallHistory
func (t *Tracker) Middlewares() []Middleware {
	return []Middleware{t.Observe(), t.CountCalls(), t.CallHistory()}
}

// Instrument applies the full instrumentation stack to inv
func (t *Tracker) Instrument(id string, inv Invoker) Invoker {
	return Chain(id, inv, t.Middlewares()...)
}

// CallCount returns how many times the operation id was invoked. It is 0
// for operations that were never called.
func (t *Tracker) CallCount(ctx context.Context, id string) (int64, error) {
	return readCounter(ctx, t.client, kv.CounterKey(id))
}

// Stats returns the tracker's process-local statistics
func (t *Tracker) Stats() *Stats {
	return t.stats
}

// Track wraps fn with the tracker's full instrumentation stack
func Track[A, R any](t *Tracker, id string, fn Func[A, R]) Func[A, R] {
	return Wrap(id, fn, t.Middlewares()...)
}

func readCounter(ctx context.Context, client kv.Client, key string) (int64, error) {
	raw, ok, err := client.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, &DecodeError{Key: key, Decoder: "int", Err: err}
	}
	return n, nil
}
