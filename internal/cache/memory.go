package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/specialistvlad/stackmark/internal/ctxlog"
)

// DefaultMemorySize bounds a memory cache built without an explicit size.
const DefaultMemorySize = 1024

// MemoryOptions configures a Memory cache.
type MemoryOptions struct {
	// MaxSize is the number of entries kept before the least recently used
	// one is evicted.
	MaxSize int
	// TTL is applied to every entry; zero disables expiry.
	TTL time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Memory is an LRU cache with optional lazily checked TTL.
type Memory[V any] struct {
	mu    sync.Mutex
	lru   *simplelru.LRU
	ttl   time.Duration
	now   func() time.Time
	stats Stats
}

var _ Cache[string] = (*Memory[string])(nil)

// NewMemory creates a memory cache.
func NewMemory[V any](opts MemoryOptions) (*Memory[V], error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMemorySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lru, err := simplelru.NewLRU(opts.MaxSize, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru of size %d: %w", opts.MaxSize, err)
	}
	return &Memory[V]{lru: lru, ttl: opts.TTL, now: opts.Now}, nil
}

// Get returns a live entry and marks it most recently used.
func (m *Memory[V]) Get(ctx context.Context, key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	raw, ok := m.lru.Get(key)
	if !ok {
		m.stats.Misses++
		return zero, false
	}
	e := raw.(Entry[V])
	if e.Expired(m.now()) {
		m.lru.Remove(key)
		m.stats.Expirations++
		m.stats.Misses++
		ctxlog.FromContext(ctx).Debug("Memory cache entry expired.", "key", key)
		return zero, false
	}
	m.stats.Hits++
	return e.Value, true
}

// Peek returns a live entry without touching recency or counters.
func (m *Memory[V]) Peek(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	raw, ok := m.lru.Peek(key)
	if !ok {
		return zero, false
	}
	e := raw.(Entry[V])
	if e.Expired(m.now()) {
		return zero, false
	}
	return e.Value, true
}

// Put stores a value, evicting the least recently used entry when full.
func (m *Memory[V]) Put(ctx context.Context, key string, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lru.Add(key, Entry[V]{Key: key, Value: v, Timestamp: m.now(), TTL: m.ttl}) {
		m.stats.Evictions++
	}
}

// Invalidate drops a single key.
func (m *Memory[V]) Invalidate(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
}

// Clear drops every entry. Counters are kept.
func (m *Memory[V]) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Purge()
}

// Keys returns the stored keys from oldest to newest, expired ones included.
func (m *Memory[V]) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw := m.lru.Keys()
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k.(string))
	}
	return keys
}

func (m *Memory[V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Size = m.lru.Len()
	return s
}
