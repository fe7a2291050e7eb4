package obtrack

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/obtrack-go/internal/kv/memory"
	"github.com/vnykmshr/obtrack-go/pkg/compression"
	"github.com/vnykmshr/obtrack-go/pkg/metrics"
)

// StoreType defines the type of backend store to use
type StoreType string

const (
	// StoreTypeRedis uses a Redis server (default)
	StoreTypeRedis StoreType = "redis"

	// StoreTypeMemory keeps all state in process memory
	StoreTypeMemory StoreType = "memory"
)

// EnvPrefix is the prefix of every environment variable read by LoadConfigFromEnv
const EnvPrefix = "OBTRACK_"

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Client is a pre-configured Redis client
	// If nil, a new client will be created using Host, Port, Password, DB
	Client redis.Cmdable

	// Host of the Redis server
	// Default: localhost
	Host string

	// Port of the Redis server
	// Default: 6379
	Port int

	// Password for Redis authentication
	Password string

	// DB is the Redis database number to use
	DB int

	// KeyPrefix is prepended to all keys
	// Default: none, so keys match the operation identifiers
	KeyPrefix string
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// MemoryConfig holds memory store configuration
type MemoryConfig struct {
	// Capacity is the maximum number of keys before LRU eviction
	// Default: 10000
	Capacity int

	// Clock drives expiry, mainly for tests
	Clock clockwork.Clock
}

// MetricsConfig holds metrics exporter configuration
type MetricsConfig struct {
	// Exporter is the metrics exporter to use
	Exporter metrics.Exporter

	// Enabled determines whether metrics collection is enabled
	Enabled bool

	// Name is the name label applied to the service's stats gauges
	Name string

	// ReportingInterval determines how often stats are exported automatically
	// Set to 0 to disable automatic reporting
	ReportingInterval time.Duration

	// Labels are additional labels applied to all metrics
	Labels metrics.Labels
}

// Config defines the configuration of a Service
type Config struct {
	// StoreType determines which backend store to use
	// Default: StoreTypeRedis
	StoreType StoreType

	// Client overrides StoreType with an already constructed store client
	Client KeyValueClient

	// Redis holds Redis-specific configuration
	Redis *RedisConfig

	// Memory holds memory store configuration
	Memory *MemoryConfig

	// ResourceTTL is how long fetched resource content stays cached
	// Default: 10 seconds
	ResourceTTL time.Duration

	// StoreOperationID is the identifier Cache.Store calls are tracked under
	// Default: "Cache.store"
	StoreOperationID string

	// Hooks defines event callbacks
	Hooks *Hooks

	// Logger receives store failures and, through logging hooks, events
	Logger Logger

	// Metrics holds metrics exporter configuration
	// If nil, no metrics will be exported
	Metrics *MetricsConfig

	// Compression applies to resource content
	// If nil, compression will be disabled
	Compression *compression.Config
}

// NewDefaultConfig returns a Config for a Redis server on localhost
func NewDefaultConfig() *Config {
	return &Config{
		StoreType: StoreTypeRedis,
		Redis: &RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Memory:           &MemoryConfig{Capacity: memory.DefaultCapacity},
		ResourceTTL:      DefaultResourceTTL,
		StoreOperationID: DefaultStoreOperationID,
		Hooks:            &Hooks{},
	}
}

// NewMemoryConfig returns a Config backed by the in-process store
func NewMemoryConfig() *Config {
	return NewDefaultConfig().WithStoreType(StoreTypeMemory)
}

type envConfig struct {
	Store            string        `env:"STORE"              envDefault:"redis"`
	RedisHost        string        `env:"REDIS_HOST"         envDefault:"localhost"`
	RedisPort        int           `env:"REDIS_PORT"         envDefault:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB"           envDefault:"0"`
	RedisKeyPrefix   string        `env:"REDIS_KEY_PREFIX"`
	MemoryCapacity   int           `env:"MEMORY_CAPACITY"    envDefault:"10000"`
	ResourceTTL      time.Duration `env:"RESOURCE_TTL"       envDefault:"10s"`
	StoreOperationID string        `env:"STORE_OPERATION_ID" envDefault:"Cache.store"`
}

// LoadConfigFromEnv builds a Config from OBTRACK_* environment variables,
// starting from NewDefaultConfig
func LoadConfigFromEnv() (*Config, error) {
	raw, err := env.ParseAsWithOptions[envConfig](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	config := NewDefaultConfig().
		WithRedisAddr(raw.RedisHost, raw.RedisPort).
		WithRedisAuth(raw.RedisPassword).
		WithRedisDB(raw.RedisDB).
		WithRedisKeyPrefix(raw.RedisKeyPrefix).
		WithMemoryCapacity(raw.MemoryCapacity).
		WithResourceTTL(raw.ResourceTTL).
		WithStoreOperationID(raw.StoreOperationID).
		WithStoreType(StoreType(raw.Store))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports configuration errors
func (c *Config) Validate() error {
	if c.Client == nil {
		switch c.StoreType {
		case StoreTypeRedis:
			if c.Redis == nil {
				return fmt.Errorf("Redis configuration is required when using StoreTypeRedis")
			}
		case StoreTypeMemory:
		default:
			return fmt.Errorf("unsupported store type: %q", c.StoreType)
		}
	}
	if c.ResourceTTL <= 0 {
		return fmt.Errorf("resource TTL must be positive, got %s", c.ResourceTTL)
	}
	if c.StoreOperationID == "" {
		return fmt.Errorf("store operation id must not be empty")
	}
	return nil
}

// WithStoreType selects the backend store
func (c *Config) WithStoreType(storeType StoreType) *Config {
	c.StoreType = storeType
	return c
}

// WithClient uses an already constructed store client
func (c *Config) WithClient(client KeyValueClient) *Config {
	c.Client = client
	return c
}

func (c *Config) redisConfig() *RedisConfig {
	if c.Redis == nil {
		c.Redis = &RedisConfig{Host: "localhost", Port: 6379}
	}
	return c.Redis
}

// WithRedisAddr configures the Redis server address
func (c *Config) WithRedisAddr(host string, port int) *Config {
	c.StoreType = StoreTypeRedis
	c.redisConfig().Host = host
	c.redisConfig().Port = port
	return c
}

// WithRedisClient configures Redis with a pre-configured client
func (c *Config) WithRedisClient(client redis.Cmdable) *Config {
	c.StoreType = StoreTypeRedis
	c.redisConfig().Client = client
	return c
}

// WithRedisAuth sets the Redis password
func (c *Config) WithRedisAuth(password string) *Config {
	c.redisConfig().Password = password
	return c
}

// WithRedisDB sets the Redis database number
func (c *Config) WithRedisDB(db int) *Config {
	c.redisConfig().DB = db
	return c
}

// WithRedisKeyPrefix sets the Redis key prefix
func (c *Config) WithRedisKeyPrefix(prefix string) *Config {
	c.redisConfig().KeyPrefix = prefix
	return c
}

// WithMemoryCapacity sets the memory store capacity
func (c *Config) WithMemoryCapacity(capacity int) *Config {
	if c.Memory == nil {
		c.Memory = &MemoryConfig{}
	}
	c.Memory.Capacity = capacity
	return c
}

// WithMemoryClock sets the clock driving memory store expiry
func (c *Config) WithMemoryClock(clock clockwork.Clock) *Config {
	if c.Memory == nil {
		c.Memory = &MemoryConfig{Capacity: memory.DefaultCapacity}
	}
	c.Memory.Clock = clock
	return c
}

// WithResourceTTL sets how long fetched resource content stays cached
func (c *Config) WithResourceTTL(ttl time.Duration) *Config {
	c.ResourceTTL = ttl
	return c
}

// WithStoreOperationID sets the identifier Cache.Store calls are tracked under
func (c *Config) WithStoreOperationID(id string) *Config {
	c.StoreOperationID = id
	return c
}

// WithHooks sets the event hooks
func (c *Config) WithHooks(hooks *Hooks) *Config {
	c.Hooks = hooks
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger Logger) *Config {
	c.Logger = logger
	return c
}

// WithMetrics configures metrics export
func (c *Config) WithMetrics(metricsConfig *MetricsConfig) *Config {
	c.Metrics = metricsConfig
	return c
}

// WithMetricsExporter configures metrics with the given exporter
func (c *Config) WithMetricsExporter(exporter metrics.Exporter, name string) *Config {
	c.Metrics = &MetricsConfig{
		Exporter:          exporter,
		Enabled:           true,
		Name:              name,
		ReportingInterval: 30 * time.Second,
		Labels:            make(metrics.Labels),
	}
	return c
}

// WithMetricsReportingInterval sets the stats reporting interval
func (c *Config) WithMetricsReportingInterval(interval time.Duration) *Config {
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{Labels: make(metrics.Labels)}
	}
	c.Metrics.ReportingInterval = interval
	return c
}

// WithCompression configures resource content compression
func (c *Config) WithCompression(compressionConfig *compression.Config) *Config {
	c.Compression = compressionConfig
	return c
}

// WithCompressionEnabled enables compression with default settings
func (c *Config) WithCompressionEnabled(enabled bool) *Config {
	if c.Compression == nil {
		c.Compression = compression.NewDefaultConfig()
	}
	c.Compression.Enabled = enabled
	return c
}

// WithCompressionAlgorithm sets the compression algorithm
func (c *Config) WithCompressionAlgorithm(algorithm compression.CompressorType) *Config {
	if c.Compression == nil {
		c.Compression = compression.NewDefaultConfig()
	}
	c.Compression.Algorithm = algorithm
	return c
}
