package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetryExporter implements the Exporter interface for OpenTelemetry metrics
type OpenTelemetryExporter struct {
	config *Config
	meter  metric.Meter
	ctx    context.Context

	operations        metric.Int64Counter
	operationDuration metric.Float64Histogram

	calls       metric.Int64Gauge
	callErrors  metric.Int64Gauge
	hits        metric.Int64Gauge
	misses      metric.Int64Gauge
	fetches     metric.Int64Gauge
	fetchErrors metric.Int64Gauge
	inFlight    metric.Int64Gauge
	hitRate     metric.Float64Gauge
}

// OpenTelemetryConfig holds OpenTelemetry-specific configuration
type OpenTelemetryConfig struct {
	// Meter is the OpenTelemetry meter to use
	Meter metric.Meter

	// Context is the context to use for metric operations
	Context context.Context
}

// NewOpenTelemetryExporter creates a new OpenTelemetry metrics exporter
func NewOpenTelemetryExporter(config *Config, otelConfig *OpenTelemetryConfig) (*OpenTelemetryExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if otelConfig == nil || otelConfig.Meter == nil {
		return nil, fmt.Errorf("OpenTelemetry meter is required")
	}

	ctx := otelConfig.Context
	if ctx == nil {
		ctx = context.Background()
	}

	exporter := &OpenTelemetryExporter{
		config: config,
		meter:  otelConfig.Meter,
		ctx:    ctx,
	}

	if err := exporter.createStandardMetrics(); err != nil {
		return nil, fmt.Errorf("failed to create standard metrics: %w", err)
	}

	return exporter, nil
}

func (o *OpenTelemetryExporter) createStandardMetrics() error {
	names := o.config.MetricNames

	var err error
	o.operations, err = o.meter.Int64Counter(
		names.OperationsTotal,
		metric.WithDescription("Total number of instrumented operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create operations counter: %w", err)
	}

	if o.config.IncludeDetailedTimings {
		o.operationDuration, err = o.meter.Float64Histogram(
			names.OperationDuration,
			metric.WithDescription("Operation duration in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return fmt.Errorf("failed to create duration histogram: %w", err)
		}
	}

	gauges := []struct {
		target *metric.Int64Gauge
		name   string
		desc   string
	}{
		{&o.calls, names.Calls, "Instrumented calls observed by this process"},
		{&o.callErrors, names.CallErrors, "Instrumented calls that failed in this process"},
		{&o.hits, names.Hits, "Resource cache hits observed by this process"},
		{&o.misses, names.Misses, "Resource cache misses observed by this process"},
		{&o.fetches, names.Fetches, "Underlying fetches performed by this process"},
		{&o.fetchErrors, names.FetchErrors, "Underlying fetches that failed in this process"},
		{&o.inFlight, names.InFlight, "Fetches currently in flight"},
	}
	for _, g := range gauges {
		*g.target, err = o.meter.Int64Gauge(g.name, metric.WithDescription(g.desc), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create gauge %s: %w", g.name, err)
		}
	}

	o.hitRate, err = o.meter.Float64Gauge(
		names.HitRate,
		metric.WithDescription("Resource cache hit rate as a percentage"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return fmt.Errorf("failed to create hit rate gauge: %w", err)
	}

	return nil
}

// ExportStats records a stats snapshot on the gauges
func (o *OpenTelemetryExporter) ExportStats(stats Stats, labels Labels) error {
	opt := metric.WithAttributes(o.attributes(labels)...)

	o.calls.Record(o.ctx, stats.Calls(), opt)
	o.callErrors.Record(o.ctx, stats.CallErrors(), opt)
	o.hits.Record(o.ctx, stats.Hits(), opt)
	o.misses.Record(o.ctx, stats.Misses(), opt)
	o.fetches.Record(o.ctx, stats.Fetches(), opt)
	o.fetchErrors.Record(o.ctx, stats.FetchErrors(), opt)
	o.inFlight.Record(o.ctx, stats.InFlight(), opt)
	o.hitRate.Record(o.ctx, stats.HitRate(), opt)

	return nil
}

// RecordOperation counts an operation and records its duration when timings are enabled
func (o *OpenTelemetryExporter) RecordOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	attrs := append(o.attributes(labels), attribute.String("operation", string(operation)))

	o.operations.Add(o.ctx, 1, metric.WithAttributes(append(attrs, attribute.String("result", string(result)))...))

	if o.operationDuration != nil {
		o.operationDuration.Record(o.ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}

	return nil
}

// Close shuts down the exporter.
// Instruments are owned by the meter provider, which the caller shuts down.
func (o *OpenTelemetryExporter) Close() error {
	return nil
}

func (o *OpenTelemetryExporter) attributes(labels Labels) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(o.config.Labels)+2)
	for k, v := range o.config.Labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	attrs = append(attrs, attribute.String(LabelName, nameOf(labels)))
	return attrs
}

var _ Exporter = (*OpenTelemetryExporter)(nil)
