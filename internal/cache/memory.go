package cache

import (
	"context"
	"sync"

	"github.com/rpgo/btc-annuity/internal/domain"
)

// MemoryCache implements Cache with an in-process map. Entries are never
// evicted; the cache lives as long as the process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]domain.ScenarioResults
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]domain.ScenarioResults)}
}

func (c *MemoryCache) Get(_ context.Context, hash string) (domain.ScenarioResults, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results, ok := c.entries[hash]
	return results, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, hash string, results domain.ScenarioResults) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[hash]; exists {
		return nil
	}
	c.entries[hash] = results
	return nil
}

// Len returns the number of cached results.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
