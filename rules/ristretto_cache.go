package rules

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/rotisserie/eris"
)

// RistrettoRuleSetCache is a RuleSetCache on a ristretto cache, bounded by
// entry count. Sets are costed at one unit each.
type RistrettoRuleSetCache struct {
	cache  *ristretto.Cache[string, *RuleSet]
	config CacheConfig
}

// NewRistrettoRuleSetCache creates a ristretto-backed cache.
// Call Close when done to stop its background goroutines.
func NewRistrettoRuleSetCache(config CacheConfig) (*RistrettoRuleSetCache, error) {
	maxCost := config.MaxEntries
	if maxCost <= 0 {
		maxCost = DefaultCacheConfig().MaxEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *RuleSet]{
		NumCounters: maxCost * 10, // number of keys to track frequency of
		MaxCost:     maxCost,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, eris.Wrap(err, "ristretto: create cache")
	}
	return &RistrettoRuleSetCache{cache: cache, config: config}, nil
}

// Get returns a copy of the cached set
func (c *RistrettoRuleSetCache) Get(id string) (*RuleSet, bool) {
	rs, ok := c.cache.Get(id)
	if !ok || rs == nil {
		return nil, false
	}
	return rs.Clone(), true
}

// Set stores a copy of rs. Ristretto applies writes asynchronously, so a Get
// right after Set may still miss.
func (c *RistrettoRuleSetCache) Set(rs *RuleSet) {
	if rs == nil || rs.ID == "" {
		return
	}
	if c.config.TTL > 0 {
		c.cache.SetWithTTL(rs.ID, rs.Clone(), 1, c.config.TTL)
		return
	}
	c.cache.Set(rs.ID, rs.Clone(), 1)
}

// Invalidate drops one set
func (c *RistrettoRuleSetCache) Invalidate(id string) {
	c.cache.Del(id)
}

// Clear drops every cached set
func (c *RistrettoRuleSetCache) Clear() {
	c.cache.Clear()
}

// Wait blocks until buffered writes have been applied
func (c *RistrettoRuleSetCache) Wait() {
	c.cache.Wait()
}

// Close stops the cache's background goroutines
func (c *RistrettoRuleSetCache) Close() {
	c.cache.Close()
}
