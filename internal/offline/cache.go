package offline

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultCacheTTL is the read-cache expiry applied when callers pass
	// no explicit TTL.
	DefaultCacheTTL = 10 * time.Minute

	cacheCleanupInterval = 30 * time.Minute
)

// CacheStats is a snapshot of read-cache activity.
type CacheStats struct {
	Entries       int     `json:"entries"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
}

// cacheEntry wraps a payload with its per-key hit counter.
type cacheEntry struct {
	payload []byte
	hits    int64
}

// Cache is the TTL read cache serving queries while the transport is
// offline. Entries expire by TTL and are invalidated eagerly whenever a
// fresher value is fetched.
type Cache struct {
	mu            sync.Mutex
	backing       *gocache.Cache
	hits          int64
	misses        int64
	invalidations int64
}

// NewCache creates a cache with the default TTL and cleanup interval.
func NewCache() *Cache {
	return &Cache{backing: gocache.New(DefaultCacheTTL, cacheCleanupInterval)}
}

// Get returns the cached payload for key, if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, found := c.backing.Get(key)
	if !found {
		c.misses++
		return nil, false
	}

	entry := value.(*cacheEntry)
	entry.hits++
	c.hits++
	return entry.payload, true
}

// Set stores payload under key. A zero ttl uses the default. Storing over
// an existing key replaces it, which is the eager-invalidation path for
// freshly fetched values.
func (c *Cache) Set(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.backing.Set(key, &cacheEntry{payload: payload}, ttl)
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backing.Delete(key)
	c.invalidations++
}

// InvalidateRegistry drops every key belonging to a registry. It
// implements the registry removal cascade.
func (c *Cache) InvalidateRegistry(registryID string) {
	prefix := registryID + "/"

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.backing.Items() {
		if strings.HasPrefix(key, prefix) {
			c.backing.Delete(key)
			c.invalidations++
		}
	}
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Entries:       c.backing.ItemCount(),
		Hits:          c.hits,
		Misses:        c.misses,
		Invalidations: c.invalidations,
		HitRate:       rate,
	}
}
