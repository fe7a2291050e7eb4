package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vnykmshr/obtrack-go/internal/kv"
)

// Client implements kv.Client on top of a go-redis connection
type Client struct {
	rdb       redis.Cmdable
	keyPrefix string
	closer    func() error
}

// Config holds Redis client configuration
type Config struct {
	// Client is the Redis client to use (single node, cluster or ring)
	Client redis.Cmdable

	// KeyPrefix is prepended to all keys. Empty by default so the
	// counter and history keys match the plain operation identifiers.
	KeyPrefix string

	// OwnsClient makes Close close the underlying client
	OwnsClient bool
}

// New creates a new Redis-backed client with the given configuration
func New(config *Config) (*Client, error) {
	if config == nil || config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	c := &Client{
		rdb:       config.Client,
		keyPrefix: config.KeyPrefix,
	}

	if config.OwnsClient {
		if closer, ok := config.Client.(interface{ Close() error }); ok {
			c.closer = closer.Close
		}
	}

	return c, nil
}

// Get retrieves the payload at key
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, c.buildKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, classify("GET", key, err)
	}
	return data, true, nil
}

// Set overwrites the payload at key
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, c.buildKey(key), value, 0).Err(); err != nil {
		return classify("SET", key, err)
	}
	return nil
}

// SetEx overwrites the payload at key with an expiry.
// go-redis sends PX for non-whole-second durations, so sub-second TTLs are honoured.
func (c *Client) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: got %v", kv.ErrInvalidTTL, ttl)
	}
	if err := c.rdb.Set(ctx, c.buildKey(key), value, ttl).Err(); err != nil {
		return classify("SETEX", key, err)
	}
	return nil
}

// Incr atomically increments the counter at key
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, c.buildKey(key)).Result()
	if err != nil {
		return 0, classify("INCR", key, err)
	}
	return n, nil
}

// RPush appends value to the list at key
func (c *Client) RPush(ctx context.Context, key string, value string) error {
	if err := c.rdb.RPush(ctx, c.buildKey(key), value).Err(); err != nil {
		return classify("RPUSH", key, err)
	}
	return nil
}

// LRange returns the full list at key
func (c *Client) LRange(ctx context.Context, key string) ([]string, error) {
	values, err := c.rdb.LRange(ctx, c.buildKey(key), 0, -1).Result()
	if err != nil {
		return nil, classify("LRANGE", key, err)
	}
	return values, nil
}

// Ping checks that the server answers
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return kv.Unavailable("PING", "", err)
	}
	return nil
}

// Close releases the connection if this client owns it
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// buildKey creates a Redis key with the configured prefix
func (c *Client) buildKey(key string) string {
	return c.keyPrefix + key
}

// classify maps a go-redis failure onto the kv error taxonomy
func classify(op, key string, err error) error {
	if kv.IsContextErr(err) {
		return err
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return kv.Rejected(op, key, err)
	}
	return kv.Unavailable(op, key, err)
}

var _ kv.Client = (*Client)(nil)
