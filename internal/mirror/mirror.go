// ABOUTME: Locally mirrored belief and desire sets refreshed from snapshot broadcasts
// ABOUTME: Each refresh swaps in a new immutable set so readers never see partial state

package mirror

import (
	"sync/atomic"
	"time"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Mirror holds the latest belief and desire sets seen on the bus.
type Mirror struct {
	beliefs atomic.Pointer[bdi.BeliefSet]
	desires atomic.Pointer[bdi.DesireSet]

	beliefRefreshes atomic.Uint64
	desireRefreshes atomic.Uint64
	lastRefresh     atomic.Int64 // unix nanos
}

// New returns a mirror holding empty sets.
func New() *Mirror {
	m := &Mirror{}
	m.beliefs.Store(bdi.NewBeliefSet(nil))
	m.desires.Store(bdi.NewDesireSet(nil))
	return m
}

// Beliefs returns the current belief set.
func (m *Mirror) Beliefs() *bdi.BeliefSet {
	return m.beliefs.Load()
}

// Desires returns the current desire set.
func (m *Mirror) Desires() *bdi.DesireSet {
	return m.desires.Load()
}

// SetBeliefs replaces the belief set with the snapshot and returns the new set.
func (m *Mirror) SetBeliefs(snap bdi.BeliefSetSnapshot) *bdi.BeliefSet {
	set := bdi.NewBeliefSet(snap.Beliefs)
	m.beliefs.Store(set)
	m.beliefRefreshes.Add(1)
	m.lastRefresh.Store(time.Now().UnixNano())
	return set
}

// SetDesires replaces the desire set with the snapshot and returns the new set.
func (m *Mirror) SetDesires(snap bdi.DesireSetSnapshot) *bdi.DesireSet {
	set := bdi.NewDesireSet(snap.Desires)
	m.desires.Store(set)
	m.desireRefreshes.Add(1)
	m.lastRefresh.Store(time.Now().UnixNano())
	return set
}

// Stats reports refresh counters, used by the status API and readiness.
type Stats struct {
	BeliefRefreshes uint64    `json:"belief_refreshes"`
	DesireRefreshes uint64    `json:"desire_refreshes"`
	LastRefresh     time.Time `json:"last_refresh,omitempty"`
}

// Stats returns the current refresh counters.
func (m *Mirror) Stats() Stats {
	s := Stats{
		BeliefRefreshes: m.beliefRefreshes.Load(),
		DesireRefreshes: m.desireRefreshes.Load(),
	}
	if ns := m.lastRefresh.Load(); ns != 0 {
		s.LastRefresh = time.Unix(0, ns)
	}
	return s
}

// Synced reports whether at least one snapshot of each kind has arrived.
func (m *Mirror) Synced() bool {
	return m.beliefRefreshes.Load() > 0 && m.desireRefreshes.Load() > 0
}
