package obtrack

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/obtrack-go/internal/kv"
	"github.com/vnykmshr/obtrack-go/internal/kv/memory"
	kvredis "github.com/vnykmshr/obtrack-go/internal/kv/redis"
	"github.com/vnykmshr/obtrack-go/pkg/metrics"
)

// KeyValueClient is the store interface every component consumes:
// GET, SET, SETEX, INCR, RPUSH and LRANGE.
type KeyValueClient = kv.Client

// RedisClient is the Redis-backed KeyValueClient
type RedisClient = kvredis.Client

// MemoryStore is the in-process KeyValueClient
type MemoryStore = memory.Store

// connectTimeout bounds the startup PING
const connectTimeout = 5 * time.Second

// NewRedisClient connects to Redis and verifies the server answers.
// A failed PING is reported as ErrStoreUnavailable.
func NewRedisClient(ctx context.Context, config *RedisConfig) (*RedisClient, error) {
	if config == nil {
		return nil, fmt.Errorf("Redis configuration is required")
	}

	rdb := config.Client
	owns := false
	if rdb == nil {
		rdb = redis.NewClient(&redis.Options{
			Addr:     config.Addr(),
			Password: config.Password,
			DB:       config.DB,
		})
		owns = true
	}

	client, err := kvredis.New(&kvredis.Config{
		Client:     rdb,
		KeyPrefix:  config.KeyPrefix,
		OwnsClient: owns,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.Addr(), err)
	}

	return client, nil
}

// NewMemoryClient creates an in-process store
func NewMemoryClient(config *MemoryConfig) (*MemoryStore, error) {
	if config == nil {
		config = &MemoryConfig{}
	}
	return memory.New(&memory.Config{Capacity: config.Capacity, Clock: config.Clock})
}

// Service wires a store client with a Tracker, a Cache and a Reporter that
// share hooks, logger, stats and metrics
type Service struct {
	config   *Config
	client   KeyValueClient
	tracker  *Tracker
	cache    *Cache
	reporter *Reporter
	stats    *Stats
	opts     []Option
	closer   func() error

	exporter    metrics.Exporter
	statsLabels metrics.Labels
	metricsStop chan struct{}
	metricsWg   sync.WaitGroup
	closeOnce   sync.Once
}

// New creates a Service from config
func New(config *Config) (*Service, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Service{config: config, stats: &Stats{}}

	if err := s.initializeClient(); err != nil {
		return nil, err
	}
	s.initializeMetrics()

	s.opts = []Option{
		WithLogger(config.Logger),
		WithHooks(config.Hooks),
		WithStats(s.stats),
		WithMetrics(s.exporter, s.metricLabels()),
		WithTTL(config.ResourceTTL),
		WithCompression(config.Compression),
	}

	var err error
	if s.tracker, err = NewTracker(s.client, s.opts...); err != nil {
		return nil, err
	}
	if s.cache, err = NewCache(s.client, append(s.opts, WithTracker(s.tracker), WithStoreOperationID(config.StoreOperationID))...); err != nil {
		return nil, err
	}
	if s.reporter, err = NewReporter(s.client, s.opts...); err != nil {
		return nil, err
	}

	s.startMetricsReporter()
	return s, nil
}

func (s *Service) initializeClient() error {
	if s.config.Client != nil {
		s.client = s.config.Client
		return nil
	}

	switch s.config.StoreType {
	case StoreTypeMemory:
		store, err := NewMemoryClient(s.config.Memory)
		if err != nil {
			return fmt.Errorf("failed to create memory store: %w", err)
		}
		s.client = store
	case StoreTypeRedis:
		client, err := NewRedisClient(context.Background(), s.config.Redis)
		if err != nil {
			return err
		}
		s.client = client
		s.closer = client.Close
	default:
		return fmt.Errorf("unsupported store type: %q", s.config.StoreType)
	}
	return nil
}

func (s *Service) initializeMetrics() {
	m := s.config.Metrics
	if m == nil || !m.Enabled || m.Exporter == nil {
		s.exporter = metrics.NewNoOpExporter()
		return
	}

	s.exporter = m.Exporter
	s.statsLabels = s.metricLabels()
	s.statsLabels[metrics.LabelName] = m.Name
}

func (s *Service) metricLabels() metrics.Labels {
	labels := make(metrics.Labels)
	if s.config.Metrics != nil {
		for k, v := range s.config.Metrics.Labels {
			labels[k] = v
		}
	}
	return labels
}

func (s *Service) startMetricsReporter() {
	m := s.config.Metrics
	if m == nil || !m.Enabled || m.Exporter == nil || m.ReportingInterval <= 0 {
		return
	}

	s.metricsStop = make(chan struct{})
	s.metricsWg.Add(1)
	go s.metricsReporter(m.ReportingInterval)
}

// metricsReporter periodically exports the shared stats
func (s *Service) metricsReporter(interval time.Duration) {
	defer s.metricsWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ExportStats()
		case <-s.metricsStop:
			s.ExportStats()
			return
		}
	}
}

// ExportStats pushes the current stats to the metrics exporter
func (s *Service) ExportStats() {
	_ = s.exporter.ExportStats(s.stats, s.statsLabels)
}

// NewResourceCache wraps fetch with a resource cache sharing the service's
// store, hooks, logger, stats, metrics, TTL and compression settings.
// opts are applied after the service defaults.
func (s *Service) NewResourceCache(fetch Fetcher, opts ...Option) (*ResourceCache, error) {
	return NewResourceCache(s.client, fetch, append(append([]Option{}, s.opts...), opts...)...)
}

// Client returns the store client
func (s *Service) Client() KeyValueClient { return s.client }

// Tracker returns the call tracker
func (s *Service) Tracker() *Tracker { return s.tracker }

// Cache returns the typed cache
func (s *Service) Cache() *Cache { return s.cache }

// Reporter returns the replay reporter
func (s *Service) Reporter() *Reporter { return s.reporter }

// Stats returns the statistics shared by all components of the service
func (s *Service) Stats() *Stats { return s.stats }

// Config returns the service configuration
func (s *Service) Config() *Config { return s.config }

// Close stops metrics reporting and closes the store connection if the service opened it
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.metricsStop != nil {
			close(s.metricsStop)
			s.metricsWg.Wait()
		}
		if s.closer != nil {
			err = s.closer()
		}
	})
	return err
}
