// ABOUTME: Thread-safe bounded set for recognising replies that were already delivered.
// ABOUTME: Evicts the oldest half of its entries in one pass once capacity is exceeded.

package dedupe

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the number of keys a Cache holds before evicting.
const DefaultCapacity = 1000

// Cache is a thread-safe, size-limited set of seen keys. Entries do not
// expire; they leave only through eviction. Insertion order is kept in a
// doubly-linked list so the oldest keys can be dropped without scanning.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]*list.Element
	order    *list.List // keys in insertion order (oldest at front)
	capacity int
	onEvict  func(n int)
}

// Option configures a Cache.
type Option func(*Cache)

// WithEvictHook registers a callback invoked with the number of keys removed
// by each bulk eviction. The callback runs with the cache lock held and must not
// call back into the cache.
func WithEvictHook(fn func(n int)) Option {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

// New creates a cache holding at most capacity keys. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		seen:     make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns true if the key is currently in the set.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.seen[key]
	return ok
}

// CheckAndMark atomically checks if a key has been seen and marks it if not.
// Returns true if the key was already seen (duplicate), false if it's new and now marked.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[key]; ok {
		return true
	}
	c.insertLocked(key)
	return false
}

// Mark records that a key has been seen. Marking a key that is already
// present leaves its position unchanged.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[key]; ok {
		return
	}
	c.insertLocked(key)
}

// Forget removes a key so that it reads as new again. Forgetting an absent
// key is a no-op.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.seen[key]; ok {
		c.order.Remove(elem)
		delete(c.seen, key)
	}
}

// Len returns the number of keys currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Capacity returns the configured maximum size.
func (c *Cache) Capacity() int {
	return c.capacity
}

// insertLocked adds a new key. Must be called with mu held.
func (c *Cache) insertLocked(key string) {
	c.seen[key] = c.order.PushBack(key)

	if len(c.seen) > c.capacity {
		c.evictOldestHalf()
	}
}

// evictOldestHalf drops len/2 keys from the front of the insertion list.
// Must be called with mu held.
func (c *Cache) evictOldestHalf() {
	n := len(c.seen) / 2
	for i := 0; i < n; i++ {
		front := c.order.Front()
		if front == nil {
			break
		}
		key, _ := front.Value.(string)
		c.order.Remove(front)
		delete(c.seen, key)
	}
	if c.onEvict != nil {
		c.onEvict(n)
	}
}
