package obtrack

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vnykmshr/obtrack-go/internal/kv"
	"github.com/vnykmshr/obtrack-go/pkg/metrics"
)

// Reporter reads back call histories written by a Tracker. It never writes.
type Reporter struct {
	client   kv.Client
	exporter metrics.Exporter
	opts     *Options
}

// NewReporter creates a reporter reading from client
func NewReporter(client KeyValueClient, opts ...Option) (*Reporter, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	o := newOptions(opts)
	return &Reporter{client: client, exporter: o.Exporter, opts: o}, nil
}

// Call is one recorded invocation
type Call struct {
	Input  string
	Output string
}

// History is the stored call history of one operation
type History struct {
	ID      string
	Inputs  []string
	Outputs []string
}

// Count is the number of recorded invocations, the length of the inputs list
func (h *History) Count() int {
	return len(h.Inputs)
}

// Calls pairs inputs with outputs in stored order. When a call failed after
// its input was recorded the lists differ in length; pairing stops at the
// shorter one.
func (h *History) Calls() []Call {
	n := min(len(h.Inputs), len(h.Outputs))
	calls := make([]Call, n)
	for i := range calls {
		calls[i] = Call{Input: h.Inputs[i], Output: h.Outputs[i]}
	}
	return calls
}

// Header is the summary line preceding the replayed calls
func (h *History) Header() string {
	return fmt.Sprintf("%s was called %d times:", h.ID, h.Count())
}

// Lines renders each call as "id(input) -> output"
func (h *History) Lines() []string {
	calls := h.Calls()
	lines := make([]string, len(calls))
	for i, call := range calls {
		lines[i] = fmt.Sprintf("%s(%s) -> %s", h.ID, call.Input, call.Output)
	}
	return lines
}

// WriteTo writes the header and one line per call to w
func (h *History) WriteTo(w io.Writer) (int64, error) {
	var total int64

	n, err := fmt.Fprintln(w, h.Header())
	total += int64(n)
	if err != nil {
		return total, err
	}

	for _, line := range h.Lines() {
		n, err := fmt.Fprintln(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// History loads the recorded inputs and outputs of operation id
func (r *Reporter) History(ctx context.Context, id string) (*History, error) {
	start := time.Now()
	h, err := r.load(ctx, id)
	_ = r.exporter.RecordOperation(metrics.OperationReplay, metrics.ResultOf(err), time.Since(start), r.opts.labelsFor(id))
	return h, err
}

func (r *Reporter) load(ctx context.Context, id string) (*History, error) {
	inputs, err := r.client.LRange(ctx, kv.InputsKey(id))
	if err != nil {
		return nil, fmt.Errorf("read inputs of %s: %w", id, err)
	}

	outputs, err := r.client.LRange(ctx, kv.OutputsKey(id))
	if err != nil {
		return nil, fmt.Errorf("read outputs of %s: %w", id, err)
	}

	return &History{ID: id, Inputs: inputs, Outputs: outputs}, nil
}

// Replay writes the call history of operation id to w
func (r *Reporter) Replay(ctx context.Context, id string, w io.Writer) error {
	h, err := r.History(ctx, id)
	if err != nil {
		return err
	}
	_, err = h.WriteTo(w)
	return err
}
