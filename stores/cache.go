package stores

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const DefaultCacheCapacity = 10000

// CacheBackend is the read-result cache contract shared by the in-memory
// store and the redis adapter. Get reports a hit by decoding the cached
// bytes into dest and returning true; a miss or expired entry returns
// false with dest untouched.
type CacheBackend interface {
	Get(ctx context.Context, key string, now time.Time, dest interface{}) (bool, error)
	Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// ResultCache is the bounded in-memory CacheBackend. Values are stored as
// their JSON encoding so repeated hits serve byte-identical payloads and
// the backend stays interchangeable with redis. Same capacity policy as
// the idempotency store: one arbitrary eviction per insert at capacity.
type ResultCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	capacity int
	nowFn    func() time.Time
}

func CreateResultCache(capacity int, nowFn func() time.Time) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &ResultCache{
		entries:  make(map[string]cacheEntry),
		capacity: capacity,
		nowFn:    nowFn,
	}
}

func (c *ResultCache) Get(_ context.Context, key string, now time.Time, dest interface{}) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !entry.expiresAt.After(now) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *ResultCache) Put(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		for victim := range c.entries {
			delete(c.entries, victim)
			break
		}
	}
	c.entries[key] = cacheEntry{
		payload:   payload,
		expiresAt: c.nowFn().Add(ttl),
	}
	return nil
}

func (c *ResultCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
