package resource

import (
	"context"
	"sort"
	"sync"

	"metadesc/internal/shared/observability"

	"golang.org/x/sync/singleflight"
)

// ImportCache maps absolute locators to parsed descriptors. Entries are
// added lazily and never evicted; descriptors published at a locator are
// treated as immutable for the lifetime of the owning Manager.
type ImportCache struct {
	mu      sync.RWMutex
	entries map[string]any
	group   singleflight.Group
	parses  map[string]int
}

func NewImportCache() *ImportCache {
	return &ImportCache{
		entries: make(map[string]any),
		parses:  make(map[string]int),
	}
}

// Get returns the cached descriptor for locator, if present.
func (c *ImportCache) Get(locator string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[locator]
	return v, ok
}

// GetOrLoad returns the cached descriptor for locator or runs load exactly
// once across concurrent callers and publishes its result. Failed loads are
// not cached, so a later call retries. load runs detached from the
// cancellation of the caller that started it; each caller stops waiting
// when its own ctx is done.
func (c *ImportCache) GetOrLoad(ctx context.Context, locator string, load func(context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(locator); ok {
		observability.ImportCacheHitsTotal.Inc()
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(locator, func() (interface{}, error) {
		// A caller that lost the race to an earlier flight finds the entry here.
		if v, ok := c.Get(locator); ok {
			observability.ImportCacheHitsTotal.Inc()
			return v, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[locator] = v
		c.parses[locator]++
		c.mu.Unlock()
		observability.DescriptorParsesTotal.Inc()
		observability.ImportCacheEntries.Inc()
		return v, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of cached descriptors.
func (c *ImportCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Locators returns the cached locators in sorted order.
func (c *ImportCache) Locators() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseCount reports how many times locator was parsed into this cache.
func (c *ImportCache) ParseCount(locator string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parses[locator]
}

// Snapshot returns a copy of the cache contents.
func (c *ImportCache) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}
