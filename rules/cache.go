package rules

import "time"

// RuleSetCache keeps loaded rule sets so repeated calculations skip the store.
// Implementations hand out copies; callers may modify what they get.
type RuleSetCache interface {
	// Get returns the cached set, or false on a miss or expiry
	Get(id string) (*RuleSet, bool)

	// Set stores a copy of rs under rs.ID
	Set(rs *RuleSet)

	// Invalidate drops one set, forcing a store read on next Get
	Invalidate(id string)

	// Clear drops everything
	Clear()
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means entries live until invalidated.
	TTL time.Duration

	// MaxEntries bounds the number of cached sets. Zero means unbounded for
	// the in-memory cache and 10000 for ristretto.
	MaxEntries int64
}

// DefaultCacheConfig keeps sets until a save or delete invalidates them
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        0,
		MaxEntries: 10000,
	}
}
