// ABOUTME: Thread-safe TTL and size-bounded value cache
// ABOUTME: Backs today's story so each day, language and topic is generated once

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// loadTimeout bounds one shared load, independent of any single caller's context.
const loadTimeout = 2 * time.Minute

type entry[V any] struct {
	key     string
	value   V
	stored  time.Time
	element *list.Element
}

// Cache maps string keys to values that expire after ttl. When full, the
// oldest entry is evicted. A linked list keeps insertion order for O(1) eviction.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	order   *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	loads   singleflight.Group
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts its cleanup goroutine.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	return newCache[V](ttl, maxSize, time.Now, time.Minute)
}

func newCache[V any](ttl time.Duration, maxSize int, now func() time.Time, sweep time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache[V]{
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
	go c.cleanup(sweep)
	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.stored) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest entry when at capacity.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.stored = c.now()
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	e := &entry[V]{key: key, value: value, stored: c.now()}
	e.element = c.order.PushBack(e)
	c.entries[key] = e
}

// GetOrLoad returns the cached value for key, or calls load once for all
// concurrent callers and caches a successful result. The bool reports a hit.
// The load outlives any one caller; each caller stops waiting when its own ctx ends.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	ch := c.loads.DoChan(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		v, err := load(lctx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(V), false, nil
	}
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked must be called with mu held.
func (c *Cache[V]) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	e := front.Value.(*entry[V])
	c.order.Remove(front)
	delete(c.entries, e.key)
}

func (c *Cache[V]) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.stored) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
