// ABOUTME: Tests for the embedded store and typed channels
// ABOUTME: Verifies intents produce snapshots and fulfilled desires are not inserted

package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-bdi/internal/bdi"
)

type snapshots struct {
	mu      sync.Mutex
	beliefs []bdi.BeliefSetSnapshot
	desires []bdi.DesireSetSnapshot
}

func (s *snapshots) lastBeliefs() (bdi.BeliefSetSnapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.beliefs) == 0 {
		return bdi.BeliefSetSnapshot{}, 0
	}
	return s.beliefs[len(s.beliefs)-1], len(s.beliefs)
}

func (s *snapshots) lastDesires() (bdi.DesireSetSnapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.desires) == 0 {
		return bdi.DesireSetSnapshot{}, 0
	}
	return s.desires[len(s.desires)-1], len(s.desires)
}

func newStoreFixture(t *testing.T, beliefs []bdi.Belief, desires []bdi.Desire) (*Channels, *Store, *snapshots) {
	t.Helper()
	b := NewMemory(nil)
	t.Cleanup(func() { b.Close() })

	ch := NewChannels(b, "robot1", nil)
	snaps := &snapshots{}
	_, err := ch.OnBeliefSet(func(s bdi.BeliefSetSnapshot) {
		snaps.mu.Lock()
		snaps.beliefs = append(snaps.beliefs, s)
		snaps.mu.Unlock()
	})
	require.NoError(t, err)
	_, err = ch.OnDesireSet(func(s bdi.DesireSetSnapshot) {
		snaps.mu.Lock()
		snaps.desires = append(snaps.desires, s)
		snaps.mu.Unlock()
	})
	require.NoError(t, err)

	store := NewStore(ch, beliefs, desires, nil)
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(store.Stop)
	return ch, store, snaps
}

func TestStore_PublishesInitialSnapshots(t *testing.T) {
	_, _, snaps := newStoreFixture(t,
		[]bdi.Belief{bdi.NewPredicate("in", "r1", "kitchen")},
		[]bdi.Desire{{Name: "go", Priority: 0.5, Target: []bdi.Belief{bdi.NewPredicate("in", "r1", "bedroom")}}},
	)

	require.Eventually(t, func() bool {
		_, nb := snaps.lastBeliefs()
		_, nd := snaps.lastDesires()
		return nb == 1 && nd == 1
	}, time.Second, 5*time.Millisecond)

	bs, _ := snaps.lastBeliefs()
	assert.Equal(t, "robot1", bs.AgentID)
	assert.Len(t, bs.Beliefs, 1)
	ds, _ := snaps.lastDesires()
	assert.Len(t, ds.Desires, 1)
}

func TestStore_AppliesBeliefIntents(t *testing.T) {
	ch, store, snaps := newStoreFixture(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, ch.AddBelief(ctx, bdi.NewFunction("battery", 50, "r1")))
	require.NoError(t, ch.AddBelief(ctx, bdi.NewFunction("battery", 40, "r1")))
	require.NoError(t, ch.AddBelief(ctx, bdi.NewPredicate("clear", "a")))

	require.Eventually(t, func() bool {
		_, n := snaps.lastBeliefs()
		return n == 4
	}, time.Second, 5*time.Millisecond)

	beliefs := store.Beliefs()
	require.Len(t, beliefs, 2, "value update keeps identity")
	assert.Equal(t, 40.0, beliefs[0].Value)

	require.NoError(t, ch.DelBelief(ctx, bdi.NewFunction("battery", 0, "r1")))
	require.Eventually(t, func() bool {
		s, n := snaps.lastBeliefs()
		return n == 5 && len(s.Beliefs) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStore_NoopIntentStillPublishes(t *testing.T) {
	ch, _, snaps := newStoreFixture(t, nil, nil)

	require.NoError(t, ch.DelBelief(context.Background(), bdi.NewPredicate("missing")))
	require.Eventually(t, func() bool {
		_, n := snaps.lastBeliefs()
		return n == 2
	}, time.Second, 5*time.Millisecond)
}

func TestStore_FulfilledDesireNotInserted(t *testing.T) {
	held := bdi.NewPredicate("in", "r1", "kitchen")
	ch, store, snaps := newStoreFixture(t, []bdi.Belief{held}, nil)
	ctx := context.Background()

	require.NoError(t, ch.AddDesire(ctx, bdi.Desire{Name: "stay", Priority: 0.3, Target: []bdi.Belief{held}}))
	require.NoError(t, ch.AddDesire(ctx, bdi.Desire{Name: "move", Priority: 0.6, Target: []bdi.Belief{bdi.NewPredicate("in", "r1", "hall")}}))

	require.Eventually(t, func() bool {
		_, n := snaps.lastDesires()
		return n == 3
	}, time.Second, 5*time.Millisecond)

	desires := store.Desires()
	require.Len(t, desires, 1)
	assert.Equal(t, "move", desires[0].Name)

	require.NoError(t, ch.DelDesire(ctx, bdi.Desire{Name: "move"}))
	require.Eventually(t, func() bool {
		s, n := snaps.lastDesires()
		return n == 4 && len(s.Desires) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestStore_IgnoresInvalidIntent(t *testing.T) {
	_, store, _ := newStoreFixture(t, nil, nil)
	store.ApplyAddDesire(context.Background(), bdi.Desire{Name: "bad", Priority: 3})
	assert.Empty(t, store.Desires())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "bdi.robot1.belief_set", Subject("robot1", ChanBeliefSet))
}
