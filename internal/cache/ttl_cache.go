package cache

import (
	"sync"
	"time"
)

// Cache is a minimal TTL-aware key/value store.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	SetIfAbsent(key K, value V, ttl time.Duration) bool
	Delete(key K)
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	now     func() time.Time
}

// NewTTLCache returns an in-memory cache with per-entry expiry. Expired
// entries are dropped on read and swept opportunistically on write.
func NewTTLCache[K comparable, V any]() Cache[K, V] {
	return &ttlCache[K, V]{
		entries: map[K]entry[V]{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewTTLCacheWithNow is NewTTLCache with an injected time source.
func NewTTLCacheWithNow[K comparable, V any](now func() time.Time) Cache[K, V] {
	return &ttlCache[K, V]{
		entries: map[K]entry[V]{},
		now:     now,
	}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	c.entries[key] = entry[V]{value: value, expiresAt: expiry(now, ttl)}
}

// SetIfAbsent stores the value only when no live entry exists for the key.
// Returns true when the value was stored.
func (c *ttlCache[K, V]) SetIfAbsent(key K, value V, ttl time.Duration) bool {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	if e, ok := c.entries[key]; ok {
		if e.expiresAt.IsZero() || now.Before(e.expiresAt) {
			return false
		}
	}
	c.entries[key] = entry[V]{value: value, expiresAt: expiry(now, ttl)}
	return true
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *ttlCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweepLocked drops a bounded number of expired entries per write so the
// map does not grow without bound between reads.
func (c *ttlCache[K, V]) sweepLocked(now time.Time) {
	const sweepLimit = 32
	scanned := 0
	for key, e := range c.entries {
		if scanned >= sweepLimit {
			return
		}
		scanned++
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
