// ABOUTME: Thread-safe TTL cache of responses keyed by request id
// ABOUTME: Lets retried cross-agent writes replay the first outcome instead of re-applying

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired entries are dropped.
const DefaultSweepInterval = time.Minute

type entry[V any] struct {
	key     string
	value   V
	stored  time.Time
	element *list.Element
}

// Cache holds at most maxSize values for ttl each. Insertion order is kept
// in a list so eviction of the oldest entry is O(1).
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// New creates a cache and starts its background sweep.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	return newCache[V](ttl, maxSize, DefaultSweepInterval, time.Now)
}

func newCache[V any](ttl time.Duration, maxSize int, sweep time.Duration, now func() time.Time) *Cache[V] {
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
	go c.sweepLoop(sweep)
	return c
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.expiredLocked(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores v under key, replacing any previous value and evicting the
// oldest entry when full.
func (c *Cache[V]) Put(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = v
		e.stored = c.now()
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	e := &entry[V]{key: key, value: v, stored: c.now()}
	e.element = c.order.PushBack(e)
	c.entries[key] = e
}

// Len returns the number of entries, expired ones included until swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) expiredLocked(e *entry[V]) bool {
	return c.now().Sub(e.stored) >= c.ttl
}

func (c *Cache[V]) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	e, _ := front.Value.(*entry[V])
	c.order.Remove(front)
	delete(c.entries, e.key)
}

func (c *Cache[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired entries. Entries are in insertion order, so it stops
// at the first live one.
func (c *Cache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e, _ := front.Value.(*entry[V])
		if !c.expiredLocked(e) {
			return
		}
		c.order.Remove(front)
		delete(c.entries, e.key)
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
