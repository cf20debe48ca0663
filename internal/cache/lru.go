package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a size bounded cache whose entries expire after a TTL. With
// sliding expiry enabled a successful Get pushes the deadline forward.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	sliding bool
	now     func() time.Time
	onEvict func(key string, data T)
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// Option configures an LRUCache.
type Option[T any] func(*LRUCache[T])

// WithSlidingExpiry renews an entry's TTL every time it is read.
func WithSlidingExpiry[T any]() Option[T] {
	return func(c *LRUCache[T]) { c.sliding = true }
}

// WithClock overrides the time source.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *LRUCache[T]) { c.now = now }
}

// WithEvictCallback is called, outside the cache lock, for every entry
// removed by expiry or capacity. Explicit Delete does not trigger it.
func WithEvictCallback[T any](fn func(key string, data T)) Option[T] {
	return func(c *LRUCache[T]) { c.onEvict = fn }
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option[T]) *LRUCache[T] {
	c := &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	var zero T
	var evicted *cacheItem[T]

	c.mu.Lock()
	elem, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return zero, false
	}
	item := elem.Value.(*cacheItem[T])
	now := c.now()
	if now.After(item.expiresAt) {
		c.removeElement(elem)
		evicted = item
	} else {
		if c.sliding {
			item.expiresAt = now.Add(c.ttl)
		}
		c.lru.MoveToFront(elem)
	}
	c.mu.Unlock()

	if evicted != nil {
		c.evicted(evicted)
		return zero, false
	}
	return item.data, true
}

// Set stores a value in the cache
func (c *LRUCache[T]) Set(key string, data T) {
	var evicted *cacheItem[T]

	c.mu.Lock()
	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		c.mu.Unlock()
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.maxSize > 0 && c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			evicted = oldest.Value.(*cacheItem[T])
			c.removeElement(oldest)
		}
	}
	c.mu.Unlock()

	if evicted != nil {
		c.evicted(evicted)
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

func (c *LRUCache[T]) evicted(item *cacheItem[T]) {
	if c.onEvict != nil {
		c.onEvict(item.key, item.data)
	}
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	now := c.now()
	var removed []*cacheItem[T]
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		item := elem.Value.(*cacheItem[T])
		if now.After(item.expiresAt) {
			c.removeElement(elem)
			removed = append(removed, item)
		}
		elem = next
	}
	c.mu.Unlock()

	for _, item := range removed {
		c.evicted(item)
	}
	return len(removed)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
