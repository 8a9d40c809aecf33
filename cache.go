package offers

import (
	"sync"
	"time"
)

// Cache stores offer listings keyed by OffersCacheKey. Implementations must
// tolerate concurrent reads and last-write-wins races on the same key;
// staleness from a benign race is bounded by the TTL.
type Cache interface {
	Get(key string) ([]Offer, bool)
	Set(key string, offers []Offer, ttl time.Duration)
	Delete(key string)
	Clear()
}

// OffersCacheKey builds the cache key for a product's offer listing.
func OffersCacheKey(productID string) string {
	return "offers:" + productID
}

type cacheEntry struct {
	offers    []Offer
	storedAt  time.Time
	expiresAt time.Time
}

// InMemoryCache is the default Cache: a mutex-guarded map with lazy TTL
// expiry checked on read. No background sweeper.
type InMemoryCache struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
}

// NewInMemoryCache returns an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		store: make(map[string]*cacheEntry),
	}
}

// Get returns the cached offers for key. Expired entries are treated as
// absent and removed.
func (c *InMemoryCache) Get(key string) ([]Offer, bool) {
	c.mu.RLock()
	entry, exists := c.store[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// replaced the entry.
		if current, ok := c.store[key]; ok && current == entry {
			delete(c.store, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.offers, true
}

// Set stores offers under key with the given TTL, overwriting any previous
// entry.
func (c *InMemoryCache) Set(key string, offers []Offer, ttl time.Duration) {
	now := time.Now()
	entry := &cacheEntry{
		offers:    offers,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	c.mu.Lock()
	c.store[key] = entry
	c.mu.Unlock()
}

// Delete removes the entry for key.
func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	c.store = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Len reports the current number of entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
