package cache

import (
	"container/list"
	"context"
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultTTL is the default time-to-live for cache items.
	DefaultTTL = 5 * time.Minute
	// DefaultCleanupInterval is the default interval for cleaning up expired items.
	DefaultCleanupInterval = 10 * time.Minute
	// DefaultCapacity is the default maximum number of items.
	DefaultCapacity = 10000

	epochStripes = 256
)

// item represents a cached value, including its insertion and expiration time.
type item[K comparable, V any] struct {
	key        K
	value      V
	insertedAt time.Time
	expiresAt  time.Time
	permanent  bool
}

func (it *item[K, V]) expired(now time.Time) bool {
	return !it.permanent && now.After(it.expiresAt)
}

// Cache is a thread-safe, generic LRU cache with expiration and cleanup.
// The front of the recency list is the most recently used item.
type Cache[K comparable, V any] struct {
	mu              sync.Mutex
	items           map[K]*list.Element
	order           *list.List
	capacity        int
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	onEvicted       func(K, V)

	seed   maphash.Seed
	epochs [epochStripes]atomic.Uint64

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	stopCleanup chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

// Option is a functional option for configuring the cache.
type Option[K comparable, V any] func(*Cache[K, V])

// New creates a new cache with the given options.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		items:           make(map[K]*list.Element),
		order:           list.New(),
		capacity:        DefaultCapacity,
		defaultTTL:      DefaultTTL,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
		seed:            maphash.MakeSeed(),
		stopCleanup:     make(chan struct{}),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.cleanupInterval > 0 {
		go c.cleanupLoop()
	} else {
		close(c.done)
	}

	return c
}

// WithCapacity bounds the number of items. A capacity <= 0 disables the bound.
func WithCapacity[K comparable, V any](capacity int) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.capacity = capacity
	}
}

// WithDefaultTTL sets the default time-to-live for cache items.
func WithDefaultTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.defaultTTL = ttl
	}
}

// WithCleanupInterval sets the interval for cleaning up expired items.
// A non-positive interval disables the background sweep; expiry stays lazy.
func WithCleanupInterval[K comparable, V any](interval time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.cleanupInterval = interval
	}
}

// WithEvictionCallback sets a function to be called when an item is removed.
// It runs outside the cache lock.
func WithEvictionCallback[K comparable, V any](onEvicted func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvicted = onEvicted
	}
}

// WithClock replaces the time source.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}

// Set adds an item to the cache, overwriting any existing item.
// If ttl is 0, the default TTL is used. If ttl is negative, the item never expires.
func (c *Cache[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	c.mu.Lock()
	evicted := c.set(key, value, ttl)
	c.mu.Unlock()

	c.notify(evicted)
}

// Epoch returns the invalidation epoch of the stripe holding key.
func (c *Cache[K, V]) Epoch(key K) uint64 {
	return c.epochs[c.stripe(key)].Load()
}

// SetIfEpoch stores value only if key's stripe has not been invalidated since epoch was read.
func (c *Cache[K, V]) SetIfEpoch(ctx context.Context, key K, value V, epoch uint64) bool {
	c.mu.Lock()
	if c.epochs[c.stripe(key)].Load() != epoch {
		c.mu.Unlock()
		return false
	}
	evicted := c.set(key, value, 0)
	c.mu.Unlock()

	c.notify(evicted)
	return true
}

func (c *Cache[K, V]) set(key K, value V, ttl time.Duration) []*item[K, V] {
	now := c.now()

	it := &item[K, V]{key: key, value: value, insertedAt: now}
	switch {
	case ttl < 0:
		it.permanent = true
	case ttl == 0:
		it.expiresAt = now.Add(c.defaultTTL)
	default:
		it.expiresAt = now.Add(ttl)
	}

	if el, found := c.items[key]; found {
		el.Value = it
		c.order.MoveToFront(el)
		return nil
	}

	var evicted []*item[K, V]
	if c.capacity > 0 && len(c.items) >= c.capacity {
		if victim := c.removeOldest(); victim != nil {
			c.evictions.Add(1)
			evicted = append(evicted, victim)
		}
	}

	c.items[key] = c.order.PushFront(it)
	return evicted
}

// Get retrieves an item from the cache.
// It returns the item's value and true if the item was found and has not expired.
// A hit makes the item the most recently used one.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zeroV V

	c.mu.Lock()
	el, found := c.items[key]
	if !found {
		c.mu.Unlock()
		c.misses.Add(1)
		return zeroV, false
	}

	it := el.Value.(*item[K, V])
	if it.expired(c.now()) {
		c.removeElement(el)
		c.mu.Unlock()
		c.expirations.Add(1)
		c.misses.Add(1)
		c.notify([]*item[K, V]{it})
		return zeroV, false
	}

	c.order.MoveToFront(el)
	value := it.value
	c.mu.Unlock()

	c.hits.Add(1)
	return value, true
}

// Delete removes an item from the cache and advances the key's invalidation epoch.
func (c *Cache[K, V]) Delete(ctx context.Context, key K) {
	c.mu.Lock()
	c.epochs[c.stripe(key)].Add(1)
	var removed *item[K, V]
	if el, found := c.items[key]; found {
		removed = c.removeElement(el)
	}
	c.mu.Unlock()

	if removed != nil {
		c.notify([]*item[K, V]{removed})
	}
}

// Count returns the number of items in the cache, including expired items not yet swept.
func (c *Cache[K, V]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all items from the cache.
func (c *Cache[K, V]) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.epochs {
		c.epochs[i].Add(1)
	}
	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        c.Count(),
		Capacity:    c.capacity,
	}
}

// Stop terminates the cleanup goroutine. It is safe to call more than once.
func (c *Cache[K, V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
	<-c.done
}

func (c *Cache[K, V]) cleanupLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache[K, V]) deleteExpired() {
	c.mu.Lock()
	now := c.now()
	var expired []*item[K, V]
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if it := el.Value.(*item[K, V]); it.expired(now) {
			expired = append(expired, c.removeElement(el))
		}
		el = prev
	}
	c.mu.Unlock()

	c.expirations.Add(uint64(len(expired)))
	c.notify(expired)
}

func (c *Cache[K, V]) removeOldest() *item[K, V] {
	el := c.order.Back()
	if el == nil {
		return nil
	}
	return c.removeElement(el)
}

func (c *Cache[K, V]) removeElement(el *list.Element) *item[K, V] {
	it := c.order.Remove(el).(*item[K, V])
	delete(c.items, it.key)
	return it
}

func (c *Cache[K, V]) notify(removed []*item[K, V]) {
	if c.onEvicted == nil {
		return
	}
	for _, it := range removed {
		c.onEvicted(it.key, it.value)
	}
}

func (c *Cache[K, V]) stripe(key K) uint64 {
	return maphash.Comparable(c.seed, key) % epochStripes
}
