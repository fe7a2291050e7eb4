package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter implements the Exporter interface for Prometheus metrics
type PrometheusExporter struct {
	config   *Config
	registry prometheus.Registerer

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	calls       *prometheus.GaugeVec
	callErrors  *prometheus.GaugeVec
	hits        *prometheus.GaugeVec
	misses      *prometheus.GaugeVec
	fetches     *prometheus.GaugeVec
	fetchErrors *prometheus.GaugeVec
	inFlight    *prometheus.GaugeVec
	hitRate     *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// PrometheusConfig holds Prometheus-specific configuration
type PrometheusConfig struct {
	// Registry is the Prometheus registry to use (optional, uses default if nil)
	Registry prometheus.Registerer

	// DurationBuckets for the operation duration histogram
	DurationBuckets []float64
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(config *Config, promConfig *PrometheusConfig) (*PrometheusExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if promConfig == nil {
		promConfig = &PrometheusConfig{}
	}

	registry := promConfig.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	durationBuckets := promConfig.DurationBuckets
	if durationBuckets == nil {
		durationBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	}

	constLabels := make(prometheus.Labels, len(config.Labels))
	for k, v := range config.Labels {
		constLabels[k] = v
	}

	exporter := &PrometheusExporter{
		config:   config,
		registry: registry,
	}

	if err := exporter.createStandardMetrics(constLabels, durationBuckets); err != nil {
		exporter.Close()
		return nil, fmt.Errorf("failed to create standard metrics: %w", err)
	}

	return exporter, nil
}

func (p *PrometheusExporter) createStandardMetrics(constLabels prometheus.Labels, durationBuckets []float64) error {
	names := p.config.MetricNames
	base := []string{LabelName}

	var err error
	p.operationsTotal, err = p.counterVec(names.OperationsTotal, "Total number of instrumented operations", append(base, "operation", "result"), constLabels)
	if err != nil {
		return err
	}

	if p.config.IncludeDetailedTimings {
		p.operationDuration, err = p.histogramVec(names.OperationDuration, "Operation duration in seconds", append(base, "operation"), constLabels, durationBuckets)
		if err != nil {
			return err
		}
	}

	gauges := []struct {
		target **prometheus.GaugeVec
		name   string
		help   string
	}{
		{&p.calls, names.Calls, "Instrumented calls observed by this process"},
		{&p.callErrors, names.CallErrors, "Instrumented calls that failed in this process"},
		{&p.hits, names.Hits, "Resource cache hits observed by this process"},
		{&p.misses, names.Misses, "Resource cache misses observed by this process"},
		{&p.fetches, names.Fetches, "Underlying fetches performed by this process"},
		{&p.fetchErrors, names.FetchErrors, "Underlying fetches that failed in this process"},
		{&p.inFlight, names.InFlight, "Fetches currently in flight"},
		{&p.hitRate, names.HitRate, "Resource cache hit rate as a percentage"},
	}
	for _, g := range gauges {
		*g.target, err = p.gaugeVec(g.name, g.help, base, constLabels)
		if err != nil {
			return err
		}
	}

	return nil
}

// ExportStats publishes a stats snapshot as gauges
func (p *PrometheusExporter) ExportStats(stats Stats, labels Labels) error {
	l := prometheus.Labels{LabelName: nameOf(labels)}

	p.calls.With(l).Set(float64(stats.Calls()))
	p.callErrors.With(l).Set(float64(stats.CallErrors()))
	p.hits.With(l).Set(float64(stats.Hits()))
	p.misses.With(l).Set(float64(stats.Misses()))
	p.fetches.With(l).Set(float64(stats.Fetches()))
	p.fetchErrors.With(l).Set(float64(stats.FetchErrors()))
	p.inFlight.With(l).Set(float64(stats.InFlight()))
	p.hitRate.With(l).Set(stats.HitRate())

	return nil
}

// RecordOperation counts an operation and observes its duration when timings are enabled
func (p *PrometheusExporter) RecordOperation(operation Operation, result Result, duration time.Duration, labels Labels) error {
	name := nameOf(labels)

	p.operationsTotal.WithLabelValues(name, string(operation), string(result)).Inc()

	if p.operationDuration != nil {
		p.operationDuration.WithLabelValues(name, string(operation)).Observe(duration.Seconds())
	}

	return nil
}

// Close unregisters all collectors so the exporter can be recreated on the same registry
func (p *PrometheusExporter) Close() error {
	for _, c := range p.collectors {
		p.registry.Unregister(c)
	}
	p.collectors = nil
	return nil
}

func (p *PrometheusExporter) counterVec(name, help string, labelNames []string, constLabels prometheus.Labels) (*prometheus.CounterVec, error) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		},
		labelNames,
	)
	return counter, p.register(counter)
}

func (p *PrometheusExporter) histogramVec(name, help string, labelNames []string, constLabels prometheus.Labels, buckets []float64) (*prometheus.HistogramVec, error) {
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
			Buckets:     buckets,
		},
		labelNames,
	)
	return histogram, p.register(histogram)
}

func (p *PrometheusExporter) gaugeVec(name, help string, labelNames []string, constLabels prometheus.Labels) (*prometheus.GaugeVec, error) {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		},
		labelNames,
	)
	return gauge, p.register(gauge)
}

func (p *PrometheusExporter) register(c prometheus.Collector) error {
	if err := p.registry.Register(c); err != nil {
		return err
	}
	p.collectors = append(p.collectors, c)
	return nil
}

var _ Exporter = (*PrometheusExporter)(nil)
