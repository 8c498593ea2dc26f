// Package cachemanager provides TTL caches used to memoize lookups against
// the current catalog generation.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a TTL cache keyed by a string-like K.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K)
	Flush(ctx context.Context)
	Len() int
}

// Stats counts cache lookups since creation.
type Stats struct {
	Hits   uint64
	Misses uint64
}
