// ABOUTME: Size-bounded TTL set of recently written plan keys
// ABOUTME: Lets the writer coalesce repeated submissions of the same plan

package planlib

import (
	"container/list"
	"sync"
	"time"
)

type recentEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Recent is a thread-safe TTL set with oldest-first eviction.
type Recent struct {
	mu      sync.Mutex
	seen    map[string]*recentEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewRecent creates a set holding at most maxSize keys for ttl each.
func NewRecent(ttl time.Duration, maxSize int) *Recent {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Recent{
		seen:    make(map[string]*recentEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// CheckAndMark reports whether key was seen within the TTL, marking it if not.
func (r *Recent) CheckAndMark(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.seen[key]; ok {
		if now.Sub(entry.timestamp) < r.ttl {
			return true
		}
		entry.timestamp = now
		r.order.MoveToBack(entry.element)
		return false
	}

	if len(r.seen) >= r.maxSize {
		r.evictOldestLocked()
	}
	r.seen[key] = &recentEntry{timestamp: now, element: r.order.PushBack(key)}
	return false
}

// Forget removes key so the next submission is written.
func (r *Recent) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.seen[key]; ok {
		r.order.Remove(entry.element)
		delete(r.seen, key)
	}
}

// Len returns the number of tracked keys, including expired ones not yet evicted.
func (r *Recent) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func (r *Recent) evictOldestLocked() {
	front := r.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	r.order.Remove(front)
	delete(r.seen, key)
}
