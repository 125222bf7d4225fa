package rules

import (
	"sync"
	"time"
)

type cacheEntry struct {
	set      *RuleSet
	cachedAt time.Time
}

// InMemoryRuleSetCache is a map-backed RuleSetCache with optional TTL.
// Thread-safe for concurrent access.
type InMemoryRuleSetCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	now     func() time.Time
	mu      sync.RWMutex
}

// NewInMemoryRuleSetCache creates a new in-memory rule set cache
func NewInMemoryRuleSetCache(config CacheConfig) *InMemoryRuleSetCache {
	return &InMemoryRuleSetCache{
		entries: make(map[string]cacheEntry),
		config:  config,
		now:     time.Now,
	}
}

// Get returns a copy of the cached set.
// Expired entries count as a miss.
func (c *InMemoryRuleSetCache) Get(id string) (*RuleSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if c.config.TTL > 0 && c.now().Sub(e.cachedAt) > c.config.TTL {
		return nil, false
	}
	return e.set.Clone(), true
}

// Set stores a copy of rs. When the cache is full an arbitrary entry is evicted.
func (c *InMemoryRuleSetCache) Set(rs *RuleSet) {
	if rs == nil || rs.ID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[rs.ID]; !exists && c.config.MaxEntries > 0 && int64(len(c.entries)) >= c.config.MaxEntries {
		for id := range c.entries {
			delete(c.entries, id)
			break
		}
	}
	c.entries[rs.ID] = cacheEntry{set: rs.Clone(), cachedAt: c.now()}
}

// Invalidate drops one set
func (c *InMemoryRuleSetCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
}

// Clear drops every cached set
func (c *InMemoryRuleSetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Len reports the number of cached sets, expired ones included
func (c *InMemoryRuleSetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
