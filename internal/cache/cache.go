// Package cache provides the layered cache used for compiled artifacts,
// resolved platform configs and incremental build entries: a bounded in-memory
// LRU with lazy TTL, a sharded on-disk store and a composite of both.
package cache

import (
	"context"
	"time"
)

// Cache is a typed key/value store. Implementations are safe for concurrent
// use. Get never fails: any internal problem is reported as a miss and
// accounted in Stats.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Put(ctx context.Context, key string, v V)
	Invalidate(ctx context.Context, key string)
	Clear(ctx context.Context)
	Stats() Stats
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Errors      uint64 `json:"errors"`
	Size        int    `json:"size"`
	// Layers is set by composite caches, keyed by layer name.
	Layers map[string]Stats `json:"layers,omitempty"`
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Entry is the stored form of a value.
type Entry[V any] struct {
	Key       string        `msgpack:"key"`
	Value     V             `msgpack:"value"`
	Timestamp time.Time     `msgpack:"ts"`
	TTL       time.Duration `msgpack:"ttl"`
}

// Expired reports whether the entry outlived its TTL at now. A zero TTL never
// expires.
func (e Entry[V]) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.Timestamp) > e.TTL
}
