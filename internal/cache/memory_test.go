package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestMemory_GetPut(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory[string](MemoryOptions{MaxSize: 4})
	require.NoError(t, err)

	_, ok := m.Get(ctx, "a")
	assert.False(t, ok)

	m.Put(ctx, "a", "A")
	v, ok := m.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "A", v)

	s := m.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, 1, s.Size)
	assert.InDelta(t, 0.5, s.HitRatio(), 0.0001)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory[int](MemoryOptions{MaxSize: 2})
	require.NoError(t, err)

	m.Put(ctx, "a", 1)
	m.Put(ctx, "b", 2)
	_, _ = m.Get(ctx, "a") // a is now the most recent
	m.Put(ctx, "c", 3)

	_, ok := m.Get(ctx, "b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = m.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), m.Stats().Evictions)

	// Explicit removal is not an eviction.
	m.Invalidate(ctx, "a")
	assert.Equal(t, uint64(1), m.Stats().Evictions)
	assert.Equal(t, []string{"c"}, m.Keys())
}

func TestMemory_TTLIsLazy(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	m, err := NewMemory[string](MemoryOptions{MaxSize: 8, TTL: time.Minute, Now: clock.Now})
	require.NoError(t, err)

	m.Put(ctx, "k", "v")
	clock.Advance(30 * time.Second)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, m.Stats().Size, "expired entries linger until read")
	_, ok = m.Peek("k")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)

	s := m.Stats()
	assert.Equal(t, uint64(1), s.Expirations)
	assert.Equal(t, 0, s.Size)
}

func TestMemory_Clear(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory[string](MemoryOptions{})
	require.NoError(t, err)

	m.Put(ctx, "a", "1")
	m.Put(ctx, "b", "2")
	m.Clear(ctx)
	assert.Equal(t, 0, m.Stats().Size)
	assert.Equal(t, uint64(0), m.Stats().Evictions)
}
