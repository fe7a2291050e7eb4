package obtrack

import (
	"time"

	"github.com/vnykmshr/obtrack-go/pkg/compression"
	"github.com/vnykmshr/obtrack-go/pkg/metrics"
)

// DefaultStoreOperationID is the operation identifier Cache.Store is tracked under
const DefaultStoreOperationID = "Cache.store"

// DefaultResourceTTL is how long fetched resource content stays cached
const DefaultResourceTTL = 10 * time.Second

// Options holds the settings shared by Tracker, Cache, Reporter and ResourceCache.
// Each constructor reads only the fields that apply to it.
type Options struct {
	Logger   Logger
	Hooks    *Hooks
	Stats    *Stats
	Exporter metrics.Exporter
	Labels   metrics.Labels

	// Tracker
	FormatArgs   func(args []any) string
	FormatResult Formatter

	// Cache
	Tracker          *Tracker
	StoreOperationID string
	DisableTracking  bool
	KeyGenerator     func() string

	// ResourceCache
	TTL         time.Duration
	Coalesce    bool
	Compression *compression.Config
}

// Option configures Options
type Option func(*Options)

func newOptions(opts []Option) *Options {
	o := &Options{
		Logger:           NewNoOpLogger(),
		Hooks:            &Hooks{},
		Exporter:         metrics.NewNoOpExporter(),
		Labels:           metrics.Labels{},
		FormatArgs:       FormatArgs,
		FormatResult:     FormatResult,
		StoreOperationID: DefaultStoreOperationID,
		TTL:              DefaultResourceTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.Stats == nil {
		o.Stats = &Stats{}
	}
	return o
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithHooks sets the event hooks
func WithHooks(hooks *Hooks) Option {
	return func(o *Options) {
		if hooks != nil {
			o.Hooks = hooks
		}
	}
}

// WithStats shares a Stats instance between components
func WithStats(stats *Stats) Option {
	return func(o *Options) {
		o.Stats = stats
	}
}

// WithMetrics records operations to exporter, adding labels to every metric
func WithMetrics(exporter metrics.Exporter, labels metrics.Labels) Option {
	return func(o *Options) {
		if exporter != nil {
			o.Exporter = exporter
		}
		for k, v := range labels {
			o.Labels[k] = v
		}
	}
}

// WithArgsFormatter overrides how call arguments are serialized into history
func WithArgsFormatter(fn func(args []any) string) Option {
	return func(o *Options) {
		if fn != nil {
			o.FormatArgs = fn
		}
	}
}

// WithResultFormatter overrides how call results are serialized into history
func WithResultFormatter(fn Formatter) Option {
	return func(o *Options) {
		if fn != nil {
			o.FormatResult = fn
		}
	}
}

// WithTracker makes a Cache record its store calls with tracker
func WithTracker(tracker *Tracker) Option {
	return func(o *Options) {
		o.Tracker = tracker
	}
}

// WithStoreOperationID sets the identifier Cache.Store is tracked under
func WithStoreOperationID(id string) Option {
	return func(o *Options) {
		if id != "" {
			o.StoreOperationID = id
		}
	}
}

// WithoutInstrumentation disables counting and history for Cache.Store
func WithoutInstrumentation() Option {
	return func(o *Options) {
		o.DisableTracking = true
	}
}

// WithKeyGenerator replaces the random UUID key generator used by Cache.Store
func WithKeyGenerator(fn func() string) Option {
	return func(o *Options) {
		o.KeyGenerator = fn
	}
}

// WithTTL sets how long fetched resource content stays cached
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.TTL = ttl
	}
}

// WithCoalescing makes concurrent misses for the same resource in this
// process share a single fetch
func WithCoalescing() Option {
	return func(o *Options) {
		o.Coalesce = true
	}
}

// WithCompression stores resource content through a compression codec
func WithCompression(config *compression.Config) Option {
	return func(o *Options) {
		o.Compression = config
	}
}

// labelsFor returns a copy of the configured labels, naming them name when set
func (o *Options) labelsFor(name string) metrics.Labels {
	labels := make(metrics.Labels, len(o.Labels)+1)
	for k, v := range o.Labels {
		labels[k] = v
	}
	if name != "" {
		labels[metrics.LabelName] = name
	}
	return labels
}
