package cache

import (
	"context"
	"time"
)

// Reader defines the read-only operations for a cache.
// K is the key type, and V is the value type.
type Reader[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
}

// Writer defines the write-only operations for a cache.
type Writer[K comparable, V any] interface {
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, key K)
}

// Guarded lets a loader populate the cache only if no invalidation of the key
// happened since it took its epoch snapshot.
type Guarded[K comparable, V any] interface {
	Epoch(key K) uint64
	SetIfEpoch(ctx context.Context, key K, value V, epoch uint64) bool
}

// Store is the primary interface that defines the behavior of the cache.
// It combines read, write, and maintenance operations.
type Store[K comparable, V any] interface {
	Reader[K, V]
	Writer[K, V]
	Guarded[K, V]
	Count() int
	Clear(ctx context.Context)
	Stats() Stats
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
}
