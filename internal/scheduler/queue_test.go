// ABOUTME: Tests for the waiting-plan queue
// ABOUTME: Covers FIFO order, tail replacement and desire indexing

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-bdi/internal/bdi"
)

func queuedPlan(id, desire string, actions int) bdi.Plan {
	p := bdi.Plan{ID: id, Desire: bdi.Desire{Name: desire}}
	for i := 0; i < actions; i++ {
		p.Actions = append(p.Actions, bdi.PlanAction{Name: "a"})
	}
	return p
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	q.Enqueue(queuedPlan("p1", "d1", 1))
	q.Enqueue(queuedPlan("p2", "d2", 1))

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "p1", got.ID)

	got, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "p2", got.ID)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueue_ReplaceLastChangesOnlySecondDequeue(t *testing.T) {
	q := NewQueue()
	q.Enqueue(queuedPlan("p1", "d1", 1))
	q.Enqueue(queuedPlan("p2", "d2", 1))

	require.True(t, q.ReplaceLast(queuedPlan("p2", "d2", 3)))

	first, _ := q.Dequeue()
	second, _ := q.Dequeue()
	assert.Equal(t, "p1", first.ID)
	assert.Len(t, first.Actions, 1)
	assert.Equal(t, "p2", second.ID)
	assert.Len(t, second.Actions, 3)
}

func TestQueue_ReplaceLastRequiresSameDesire(t *testing.T) {
	q := NewQueue()
	q.Enqueue(queuedPlan("p1", "d1", 1))

	assert.False(t, q.ReplaceLast(queuedPlan("p9", "other", 2)))
	assert.False(t, NewQueue().ReplaceLast(queuedPlan("p1", "d1", 1)))

	head, _ := q.Peek()
	assert.Len(t, head.Actions, 1)
}

func TestQueue_ReplaceLastRequiresSameID(t *testing.T) {
	q := NewQueue()
	q.Enqueue(queuedPlan("p1", "d1", 1))
	q.Enqueue(queuedPlan("p2", "d1", 1))

	assert.False(t, q.ReplaceLast(queuedPlan("p1", "d1", 4)), "tail is a different plan for the same desire")
	assert.Equal(t, 2, q.Len())
	assert.True(t, q.ContainsPlan("p1"))
	assert.True(t, q.ContainsPlan("p2"))

	require.True(t, q.Replace(queuedPlan("p1", "d1", 4)))
	first, _ := q.Dequeue()
	second, _ := q.Dequeue()
	assert.Equal(t, "p1", first.ID)
	assert.Len(t, first.Actions, 4)
	assert.Equal(t, "p2", second.ID)
	assert.Len(t, second.Actions, 1)
}

func TestQueue_ReplaceByID(t *testing.T) {
	q := NewQueue()
	q.Enqueue(queuedPlan("p1", "d1", 1))
	q.Enqueue(queuedPlan("p2", "d2", 1))

	require.True(t, q.Replace(queuedPlan("p1", "d1", 4)))
	assert.False(t, q.Replace(queuedPlan("missing", "d1", 1)))

	head, _ := q.Peek()
	assert.Len(t, head.Actions, 4)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_DesireIndex(t *testing.T) {
	q := NewQueue()
	d1 := bdi.Desire{Name: "d1"}.Fingerprint()

	q.Enqueue(queuedPlan("p1", "d1", 1))
	q.Enqueue(queuedPlan("p2", "d2", 1))
	q.Enqueue(queuedPlan("p3", "d1", 1))
	assert.True(t, q.Contains(d1))
	assert.True(t, q.ContainsPlan("p2"))

	assert.Equal(t, 2, q.RemoveDesire(d1))
	assert.False(t, q.Contains(d1))
	assert.Equal(t, 0, q.RemoveDesire(d1))
	assert.Equal(t, 1, q.Len())

	require.True(t, q.Remove("p2"))
	assert.False(t, q.Remove("p2"))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_EnqueueSameIDMovesToTail(t *testing.T) {
	q := NewQueue()
	q.Enqueue(queuedPlan("p1", "d1", 1))
	q.Enqueue(queuedPlan("p2", "d2", 1))
	q.Enqueue(queuedPlan("p1", "d1", 2))

	ids := []string{}
	for _, p := range q.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p2", "p1"}, ids)
	assert.True(t, q.Contains(bdi.Desire{Name: "d1"}.Fingerprint()))
}

func TestComputePlanProgressStatus(t *testing.T) {
	assert.Equal(t, 1.0, computePlanProgressStatus(nil))
	assert.Equal(t, 0.0, computePlanProgressStatus([]float64{0, 0}))
	assert.InDelta(t, 0.5, computePlanProgressStatus([]float64{1, 0.5, 0, 0.5}), 1e-9)
	assert.Equal(t, 1.0, computePlanProgressStatus([]float64{1, 1, 1}))
	assert.Equal(t, 1.0, computePlanProgressStatus([]float64{1.4, 1}), "values are clamped")
}
