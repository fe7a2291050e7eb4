package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/vnykmshr/obtrack-go/internal/entry"
	"github.com/vnykmshr/obtrack-go/internal/kv"
)

// DefaultCapacity is the number of SET/SETEX keys kept before least recently used ones are evicted
const DefaultCapacity = 10000

// Store implements kv.Client in process memory with LRU bounding and TTL expiry.
// It mirrors Redis semantics closely enough for tests and single-process use.
//
// Only keys last written with SET or SETEX are subject to eviction. Keys
// written with INCR or RPUSH (counters and histories) are pinned and kept
// until they expire or are overwritten with SET.
type Store struct {
	cache    *lru.Cache[string, *entry.Entry]
	pinned   map[string]*entry.Entry
	mu       sync.Mutex
	clock    clockwork.Clock
	capacity int
}

// Config holds memory store configuration
type Config struct {
	// Capacity is the maximum number of evictable keys (default DefaultCapacity)
	Capacity int

	// Clock drives expiry; defaults to the real clock
	Clock clockwork.Clock
}

// New creates a new memory store
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}

	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	cache, err := lru.New[string, *entry.Entry](capacity)
	if err != nil {
		return nil, err
	}

	return &Store{
		cache:    cache,
		pinned:   make(map[string]*entry.Entry),
		clock:    clock,
		capacity: capacity,
	}, nil
}

// Get retrieves the payload at key
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	if e.Kind != entry.KindString {
		return nil, false, wrongType("GET", key)
	}
	return e.Bytes(), true, nil
}

// Set overwrites the payload at key and clears any expiry
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, entry.New(value, 0, s.clock.Now()))
	return nil
}

// SetEx overwrites the payload at key with an expiry
func (s *Store) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: got %v", kv.ErrInvalidTTL, ttl)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, entry.New(value, ttl, s.clock.Now()))
	return nil
}

// Incr atomically increments the counter at key, preserving any expiry
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		e = entry.New([]byte("0"), 0, s.clock.Now())
	}
	if e.Kind != entry.KindString {
		return 0, wrongType("INCR", key)
	}

	n, err := strconv.ParseInt(string(e.Value), 10, 64)
	if err != nil {
		return 0, kv.Rejected("INCR", key, fmt.Errorf("value is not an integer or out of range"))
	}
	n++

	e.Value = []byte(strconv.FormatInt(n, 10))
	s.pin(key, e)
	return n, nil
}

// RPush appends value to the list at key
func (s *Store) RPush(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		e = entry.NewList(s.clock.Now())
	}
	if e.Kind != entry.KindList {
		return wrongType("RPUSH", key)
	}

	e.Append(value)
	s.pin(key, e)
	return nil
}

// LRange returns the full list at key
func (s *Store) LRange(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return []string{}, nil
	}
	if e.Kind != entry.KindList {
		return nil, wrongType("LRANGE", key)
	}
	return e.Items(), nil
}

// TTL returns the remaining time to live of key, false when absent or without expiry
func (s *Store) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok || !e.HasExpiry() {
		return 0, false
	}
	return e.TTL(s.clock.Now()), true
}

// Len returns the number of keys currently held, expired ones included until touched
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len() + len(s.pinned)
}

// Capacity returns the maximum number of evictable keys the store holds
func (s *Store) Capacity() int {
	return s.capacity
}

// Flush removes all keys
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	clear(s.pinned)
}

// live returns the entry at key, dropping it if it has expired.
// Callers must hold s.mu.
func (s *Store) live(key string) (*entry.Entry, bool) {
	e, ok := s.pinned[key]
	if !ok {
		if e, ok = s.cache.Get(key); !ok {
			return nil, false
		}
	}
	if e.IsExpired(s.clock.Now()) {
		delete(s.pinned, key)
		s.cache.Remove(key)
		return nil, false
	}
	return e, true
}

// put stores an evictable entry. Callers must hold s.mu.
func (s *Store) put(key string, e *entry.Entry) {
	delete(s.pinned, key)
	s.cache.Add(key, e)
}

// pin stores an entry that is never evicted. Callers must hold s.mu.
func (s *Store) pin(key string, e *entry.Entry) {
	s.cache.Remove(key)
	s.pinned[key] = e
}

func wrongType(op, key string) error {
	return kv.Rejected(op, key, fmt.Errorf("WRONGTYPE operation against a key holding the wrong kind of value"))
}

var _ kv.Client = (*Store)(nil)
