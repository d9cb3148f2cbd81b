package embed

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the number of live cache entries.
	DefaultCapacity = 100
	// DefaultTTL is how long a cached vector stays valid.
	DefaultTTL = 30 * time.Minute
)

// entry is a cached query vector. Mutated only under the cache mutex and
// never handed out directly; Get and put copy the vector.
type entry struct {
	key        string
	vec        []float32
	createdAt  time.Time
	lastAccess time.Time
}

// Cache is a bounded LRU cache of query embeddings with lazy TTL expiry.
// Safe for concurrent use; all reads touch recency, so every operation
// takes the mutex.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	hits     uint64
	misses   uint64
	now      func() time.Time // for testing
}

// NewCache creates a cache with the given capacity and TTL. Non-positive
// arguments fall back to the defaults.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns a copy of the cached vector for key, refreshing its recency.
// An entry past its TTL is treated as absent and removed.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := elem.Value.(*entry)
	now := c.now()
	if now.Sub(e.createdAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	e.lastAccess = now
	c.order.MoveToFront(elem)
	c.hits++
	out := make([]float32, len(e.vec))
	copy(out, e.vec)
	return out, true
}

// Put stores a copy of vec under key, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *Cache) Put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]float32, len(vec))
	copy(stored, vec)
	now := c.now()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry)
		e.vec = stored
		e.createdAt = now
		e.lastAccess = now
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}

	c.entries[key] = c.order.PushFront(&entry{
		key: key, vec: stored, createdAt: now, lastAccess: now,
	})

	// Invariant: never more than capacity live entries. A violation is a
	// programming defect; recover by clearing rather than crashing.
	if len(c.entries) > c.capacity {
		c.entries = make(map[string]*list.Element)
		c.order.Init()
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
