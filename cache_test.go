package strata_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/adapter/memory"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// mapCache is a minimal Cache for tests.
type mapCache struct {
	mu   sync.Mutex
	m    map[string][]byte
	gets int
	hits int
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.m[key]
	if !ok {
		return nil, nil
	}
	c.hits++
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func (c *mapCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
		}
	}
	return nil
}

func (c *mapCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string][]byte)
	return nil
}

// TestFindCache tests cache hits on repeated finds and invalidation on
// writes.
func TestFindCache(t *testing.T) {
	t.Parallel()

	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "page",
		Connection: []string{"default"},
		Attributes: map[string]schema.Attribute{
			"slug": {Type: schema.TypeString, Required: true},
		},
	})
	require.NoError(t, err)

	cache := newMapCache()
	c.EnableCache(cache, time.Minute)

	ctx := context.Background()
	_, err = c.Create(ctx, schema.Values{"slug": "home"})
	require.NoError(t, err)

	bySlug := criteria.Criteria{Where: criteria.Where{"slug": "home"}}
	first, err := c.Find(bySlug).All(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 0, cache.hits)

	second, err := c.Find(bySlug).All(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first[0].Get("id"), second[0].Get("id"))

	// A write through the model drops its cached results.
	_, err = c.Update(ctx, bySlug, schema.Values{"slug": "start"})
	require.NoError(t, err)
	stale, err := c.Find(bySlug).All(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
