// ABOUTME: Waiting-plan FIFO with O(1) tail replacement and fingerprint index
// ABOUTME: Holds precomputed plans until the scheduler promotes one to an intention

package scheduler

import (
	"container/list"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Queue is a FIFO of plans. It is not safe for concurrent use; the
// scheduler guards it with its own lock.
type Queue struct {
	order    *list.List // oldest at front
	byID     map[string]*list.Element
	byDesire map[bdi.Fingerprint]int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		order:    list.New(),
		byID:     make(map[string]*list.Element),
		byDesire: make(map[bdi.Fingerprint]int),
	}
}

// Enqueue appends p to the tail.
func (q *Queue) Enqueue(p bdi.Plan) {
	if el, ok := q.byID[p.ID]; ok {
		q.removeElement(el)
	}
	q.byID[p.ID] = q.order.PushBack(p)
	q.byDesire[p.Fingerprint()]++
}

// Dequeue removes and returns the head.
func (q *Queue) Dequeue() (bdi.Plan, bool) {
	front := q.order.Front()
	if front == nil {
		return bdi.Plan{}, false
	}
	p := front.Value.(bdi.Plan)
	q.removeElement(front)
	return p, true
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (bdi.Plan, bool) {
	front := q.order.Front()
	if front == nil {
		return bdi.Plan{}, false
	}
	return front.Value.(bdi.Plan), true
}

// ReplaceLast overwrites the most recently enqueued plan with p when it is
// a revision of that plan: same ID and same desire. Reports whether a
// replacement happened.
func (q *Queue) ReplaceLast(p bdi.Plan) bool {
	back := q.order.Back()
	if back == nil {
		return false
	}
	old := back.Value.(bdi.Plan)
	if old.ID != p.ID || old.Fingerprint() != p.Fingerprint() {
		return false
	}
	q.swap(back, old, p)
	return true
}

// Replace overwrites the queued plan with p's ID in place.
func (q *Queue) Replace(p bdi.Plan) bool {
	el, ok := q.byID[p.ID]
	if !ok {
		return false
	}
	q.swap(el, el.Value.(bdi.Plan), p)
	return true
}

func (q *Queue) swap(el *list.Element, old, p bdi.Plan) {
	if old.ID != p.ID {
		delete(q.byID, old.ID)
		q.byID[p.ID] = el
	}
	if oldKey, newKey := old.Fingerprint(), p.Fingerprint(); oldKey != newKey {
		if q.byDesire[oldKey] <= 1 {
			delete(q.byDesire, oldKey)
		} else {
			q.byDesire[oldKey]--
		}
		q.byDesire[newKey]++
	}
	el.Value = p
}

// Remove drops the plan with the given ID.
func (q *Queue) Remove(planID string) bool {
	el, ok := q.byID[planID]
	if !ok {
		return false
	}
	q.removeElement(el)
	return true
}

// RemoveDesire drops every plan serving key and returns how many were removed.
func (q *Queue) RemoveDesire(key bdi.Fingerprint) int {
	if q.byDesire[key] == 0 {
		return 0
	}
	removed := 0
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(bdi.Plan).Fingerprint() == key {
			q.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// Contains reports whether a plan for key is queued.
func (q *Queue) Contains(key bdi.Fingerprint) bool {
	return q.byDesire[key] > 0
}

// ContainsPlan reports whether the plan with the given ID is queued.
func (q *Queue) ContainsPlan(planID string) bool {
	_, ok := q.byID[planID]
	return ok
}

// Len returns the number of queued plans.
func (q *Queue) Len() int {
	return q.order.Len()
}

// List returns the queued plans, head first.
func (q *Queue) List() []bdi.Plan {
	out := make([]bdi.Plan, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(bdi.Plan))
	}
	return out
}

func (q *Queue) removeElement(el *list.Element) {
	p := el.Value.(bdi.Plan)
	q.order.Remove(el)
	delete(q.byID, p.ID)
	key := p.Fingerprint()
	if q.byDesire[key] <= 1 {
		delete(q.byDesire, key)
	} else {
		q.byDesire[key]--
	}
}
