package strata

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// Cache is the interface for caching find results.
// Users should implement this interface with their preferred caching
// solution (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// EnableCache caches find results in c. Any write through the
// collection invalidates every cached result of the model. Cache
// failures are soft: a read or write error falls through to the store.
func (c *Collection) EnableCache(cache Cache, ttl time.Duration) {
	c.cache = cache
	c.cacheTTL = ttl
}

func (c *Collection) cachePrefix() string {
	return c.s.Identity() + ":"
}

// cacheKey fingerprints a normalized query. Normalization sorts
// conditions and columns, so equal criteria produce equal keys.
func (c *Collection) cacheKey(q *criteria.Query) string {
	return c.cachePrefix() + fmt.Sprintf("%+v", *q)
}

// cachedFind serves rows from the cache when possible. Populated finds
// bypass the cache; their resolved records belong to other models whose
// invalidation this model cannot see.
func (f *Finder) cachedFind(ctx context.Context, q *criteria.Query) ([]map[string]any, bool) {
	if f.c.cache == nil || len(f.populate) > 0 {
		return nil, false
	}
	raw, err := f.c.cache.Get(ctx, f.c.cacheKey(q))
	if err != nil || raw == nil {
		return nil, false
	}
	var rows []map[string]any
	if err := msgpack.Unmarshal(raw, &rows); err != nil {
		return nil, false
	}
	// The codec narrows small integers on decode; re-coerce so cached
	// rows carry the same representations as rows fresh from a store.
	for _, row := range rows {
		for name, v := range row {
			a, ok := f.c.s.Attribute(name)
			if !ok || v == nil {
				continue
			}
			if coerced, err := schema.Coerce(a.Type, v); err == nil {
				row[name] = coerced
			}
		}
	}
	return rows, true
}

func (f *Finder) cacheStore(ctx context.Context, q *criteria.Query, rows []map[string]any) {
	if f.c.cache == nil || len(f.populate) > 0 {
		return
	}
	raw, err := msgpack.Marshal(rows)
	if err != nil {
		return
	}
	_ = f.c.cache.Set(ctx, f.c.cacheKey(q), raw, f.c.cacheTTL)
}

// invalidateCache drops every cached result of the model. Called after
// any successful write.
func (c *Collection) invalidateCache(ctx context.Context) {
	if c.cache == nil {
		return
	}
	_ = c.cache.DeletePrefix(ctx, c.cachePrefix())
}
