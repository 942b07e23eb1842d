// Package cache provides the read-through key-value cache used for
// serialized aggregate views. The cache is never the source of truth: every
// entry can be recomputed from the ledger, so eviction failures only degrade
// freshness, bounded by each entry's TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is an injected capability backed by any shared key-value store.
// Implementations must treat Delete/DeleteByPrefix as best-effort: callers
// never roll back a committed mutation because an eviction failed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPrefix evicts every key sharing the prefix; used for
	// list/collection-scoped invalidation.
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrCompute reads key from c, unmarshalling a hit into T. On a miss it
// runs compute, stores the result with ttl and returns it. Any cache failure
// (read or write) degrades to a direct compute; the bool result reports
// whether the cache was readable, so callers can log degradation.
func GetOrCompute[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T

	raw, err := c.Get(ctx, key)
	if err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, true, nil
		}
		// Undecodable entry: drop it and recompute.
		_ = c.Delete(ctx, key)
	}
	healthy := err == nil || errors.Is(err, ErrMiss)

	v, cerr := compute(ctx)
	if cerr != nil {
		return zero, healthy, cerr
	}

	if raw, err := json.Marshal(v); err == nil {
		if err := c.Set(ctx, key, raw, ttl); err != nil {
			healthy = false
		}
	}
	return v, healthy, nil
}
