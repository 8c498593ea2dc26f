package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache fills a CacheManager from a loader on miss. Loader errors
// are returned and not cached.
type ReadThroughCache[K ~string, V any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, key K) (V, error)
	ttl             time.Duration
	shouldSkipCache bool
}

func NewReadThroughCache[K ~string, V any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, key K) (V, error),
	ttl time.Duration,
	shouldSkipCache bool,
) *ReadThroughCache[K, V] {
	return &ReadThroughCache[K, V]{
		cache:           cache,
		fn:              fn,
		ttl:             ttl,
		shouldSkipCache: shouldSkipCache,
	}
}

// Get returns the cached value for key, loading and caching it on miss.
func (r *ReadThroughCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, key)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.fn(ctx, key)
	if err != nil {
		return value, err
	}

	r.cache.Set(ctx, key, value, r.ttl)

	return value, nil
}

// Invalidate drops every cached value, so the next Get of any key reloads.
func (r *ReadThroughCache[K, V]) Invalidate(ctx context.Context) {
	r.cache.Flush(ctx)
}
