package metrics

import (
	"errors"
	"time"
)

// Exporter defines the interface for metrics exporters.
// This abstraction allows supporting multiple observability systems.
type Exporter interface {
	// ExportStats publishes a snapshot of process-local statistics
	ExportStats(stats Stats, labels Labels) error

	// RecordOperation records one completed operation with its outcome and timing
	RecordOperation(operation Operation, result Result, duration time.Duration, labels Labels) error

	// Close shuts down the exporter and flushes any pending metrics
	Close() error
}

// Labels represents key-value pairs for metric labels/tags
type Labels map[string]string

// LabelName is the label identifying the instance that produced a metric
const LabelName = "name"

// Stats defines the statistics that can be exported.
// This allows the metrics package to work with any stats implementation.
type Stats interface {
	Calls() int64
	CallErrors() int64
	Hits() int64
	Misses() int64
	Fetches() int64
	FetchErrors() int64
	InFlight() int64
	HitRate() float64
}

// Operation represents the instrumented operations
type Operation string

const (
	OperationStore       Operation = "store"
	OperationRetrieve    Operation = "retrieve"
	OperationCall        Operation = "call"
	OperationReplay      Operation = "replay"
	OperationResourceGet Operation = "resource_get"
	OperationFetch       Operation = "fetch"
)

// Result represents the outcome of an operation
type Result string

const (
	ResultSuccess Result = "success"
	ResultError   Result = "error"
	ResultHit     Result = "hit"
	ResultMiss    Result = "miss"
)

// ResultOf maps an error to ResultSuccess or ResultError
func ResultOf(err error) Result {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// MetricNames defines standard metric names used across exporters
type MetricNames struct {
	// Counters
	OperationsTotal string

	// Histograms
	OperationDuration string

	// Gauges fed from Stats snapshots
	Calls       string
	CallErrors  string
	Hits        string
	Misses      string
	Fetches     string
	FetchErrors string
	InFlight    string
	HitRate     string
}

// DefaultMetricNames returns the default metric names with proper namespacing
func DefaultMetricNames() MetricNames {
	return MetricNames{
		OperationsTotal:   "obtrack_operations_total",
		OperationDuration: "obtrack_operation_duration_seconds",
		Calls:             "obtrack_calls",
		CallErrors:        "obtrack_call_errors",
		Hits:              "obtrack_resource_hits",
		Misses:            "obtrack_resource_misses",
		Fetches:           "obtrack_resource_fetches",
		FetchErrors:       "obtrack_resource_fetch_errors",
		InFlight:          "obtrack_inflight_fetches",
		HitRate:           "obtrack_resource_hit_rate",
	}
}

// Config holds configuration for metrics exporters
type Config struct {
	// Enabled determines whether metrics collection is enabled
	Enabled bool

	// Labels are default labels applied to all metrics
	Labels Labels

	// MetricNames allows customizing metric names
	MetricNames MetricNames

	// ReportingInterval determines how often to export stats (for push-based systems)
	ReportingInterval time.Duration

	// IncludeDetailedTimings enables operation duration histograms
	IncludeDetailedTimings bool
}

// NewDefaultConfig creates a default metrics configuration
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:                true,
		Labels:                 make(Labels),
		MetricNames:            DefaultMetricNames(),
		ReportingInterval:      30 * time.Second,
		IncludeDetailedTimings: false,
	}
}

// WithLabels adds default labels to all metrics
func (c *Config) WithLabels(labels Labels) *Config {
	if c.Labels == nil {
		c.Labels = make(Labels)
	}
	for k, v := range labels {
		c.Labels[k] = v
	}
	return c
}

// WithReportingInterval sets the reporting interval for push-based systems
func (c *Config) WithReportingInterval(interval time.Duration) *Config {
	c.ReportingInterval = interval
	return c
}

// WithDetailedTimings enables operation duration histograms
func (c *Config) WithDetailedTimings(enabled bool) *Config {
	c.IncludeDetailedTimings = enabled
	return c
}

// nameOf returns the instance name label, "default" when unset
func nameOf(labels Labels) string {
	if name, ok := labels[LabelName]; ok && name != "" {
		return name
	}
	return "default"
}

// MultiExporter fans out to multiple exporters
type MultiExporter struct {
	exporters []Exporter
}

// NewMultiExporter creates an exporter that writes to multiple backends
func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{
		exporters: exporters,
	}
}

// ExportStats exports to all configured exporters
func (m *MultiExporter) ExportStats(stats Stats, labels Labels) error {
	var errs []error
	for _, exporter := range m.exporters {
		errs = append(errs, exporter.ExportStats(stats, labels))
	}
	return errors.Join(errs...)
}

// RecordOperation records to all configured exporters
func (m *MultiExporter) RecordOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	var errs []error
	for _, exporter := range m.exporters {
		errs = append(errs, exporter.RecordOperation(operation, result, duration, labels))
	}
	return errors.Join(errs...)
}

// Close closes all configured exporters
func (m *MultiExporter) Close() error {
	var errs []error
	for _, exporter := range m.exporters {
		errs = append(errs, exporter.Close())
	}
	return errors.Join(errs...)
}

// NoOpExporter provides a no-op implementation for when metrics are disabled
type NoOpExporter struct{}

// NewNoOpExporter creates a no-op exporter
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (n *NoOpExporter) ExportStats(Stats, Labels) error { return nil }

func (n *NoOpExporter) RecordOperation(Operation, Result, time.Duration, Labels) error {
	return nil
}

func (n *NoOpExporter) Close() error { return nil }

var (
	_ Exporter = (*MultiExporter)(nil)
	_ Exporter = (*NoOpExporter)(nil)
)
