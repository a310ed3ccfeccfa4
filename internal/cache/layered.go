package cache

import (
	"context"
)

// Layered reads through a fast layer into a slow one. Hits in the slow layer
// are promoted; writes, invalidations and clears go to both.
type Layered[V any] struct {
	memory Cache[V]
	disk   Cache[V]
}

var _ Cache[string] = (*Layered[string])(nil)

// NewLayered composes a memory and a disk layer.
func NewLayered[V any](memory, disk Cache[V]) *Layered[V] {
	return &Layered[V]{memory: memory, disk: disk}
}

func (l *Layered[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := l.memory.Get(ctx, key); ok {
		return v, true
	}
	v, ok := l.disk.Get(ctx, key)
	if !ok {
		return v, false
	}
	l.memory.Put(ctx, key, v)
	return v, true
}

func (l *Layered[V]) Put(ctx context.Context, key string, v V) {
	l.memory.Put(ctx, key, v)
	l.disk.Put(ctx, key, v)
}

func (l *Layered[V]) Invalidate(ctx context.Context, key string) {
	l.memory.Invalidate(ctx, key)
	l.disk.Invalidate(ctx, key)
}

func (l *Layered[V]) Clear(ctx context.Context) {
	l.memory.Clear(ctx)
	l.disk.Clear(ctx)
}

// Stats reports a combined view: a hit in either layer is a hit, a miss is a
// miss in both.
func (l *Layered[V]) Stats() Stats {
	mem := l.memory.Stats()
	disk := l.disk.Stats()
	return Stats{
		Hits:        mem.Hits + disk.Hits,
		Misses:      disk.Misses,
		Evictions:   mem.Evictions + disk.Evictions,
		Expirations: mem.Expirations + disk.Expirations,
		Errors:      mem.Errors + disk.Errors,
		Size:        disk.Size,
		Layers:      map[string]Stats{"memory": mem, "disk": disk},
	}
}
