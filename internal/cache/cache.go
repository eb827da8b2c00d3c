// Package cache defines the best-effort, string-keyed byte store the engine
// uses for embedding and query-result caching, plus two implementations: an
// in-process map for tests and operators without Redis, and a Redis-backed
// one (github.com/redis/rueidis) for production.
package cache

import (
	"context"
	"time"
)

// Cache is a best-effort key-value store with per-key TTL. Implementations
// must degrade to "every call misses" rather than propagate errors when the
// backend is unavailable — callers never need to special-case a down cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Del(ctx context.Context, key string)
}
