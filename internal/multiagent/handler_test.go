// ABOUTME: Tests for the request handler against an embedded store on the memory bus
// ABOUTME: Covers clamping, refusals, bounded waits and already-fulfilled desires

package multiagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/bus"
	"github.com/2389/coven-bdi/internal/mirror"
	"github.com/2389/coven-bdi/internal/wire"
)

var (
	atKitchen = bdi.NewPredicate("at", "robot1", "kitchen")
	atDock    = bdi.NewPredicate("at", "robot1", "dock")
)

type fixture struct {
	handler *Handler
	store   *bus.Store
	mirror  *mirror.Mirror
}

func newFixture(t *testing.T, beliefs []bdi.Belief, desires []bdi.Desire) *fixture {
	t.Helper()
	return newFixtureWith(t, HandlerConfig{MaxWaitUpdates: 8, WaitTimeout: 2 * time.Second}, beliefs, desires)
}

func newFixtureWith(t *testing.T, cfg HandlerConfig, beliefs []bdi.Belief, desires []bdi.Desire) *fixture {
	t.Helper()
	b := bus.NewMemory(nil)
	t.Cleanup(func() { b.Close() })
	ch := bus.NewChannels(b, "robot1", nil)

	m := mirror.New()
	h := NewHandler(testPolicy(), m, ch, cfg, nil)
	_, err := ch.OnBeliefSet(func(s bdi.BeliefSetSnapshot) { h.OnBeliefSet(s) })
	require.NoError(t, err)
	_, err = ch.OnDesireSet(func(s bdi.DesireSetSnapshot) { h.OnDesireSet(s) })
	require.NoError(t, err)

	store := bus.NewStore(ch, beliefs, desires, nil)
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(store.Stop)
	require.Eventually(t, m.Synced, time.Second, 5*time.Millisecond)

	return &fixture{handler: h, store: store, mirror: m}
}

func goTo(place string, pr float64) bdi.Desire {
	return bdi.Desire{
		Name:     "go_" + place,
		Priority: pr,
		Target:   []bdi.Belief{bdi.NewPredicate("at", "robot1", place)},
	}
}

func TestHandler_AddDesireClampsPriority(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.handler.AddDesire(context.Background(), &wire.DesireRequest{Group: "groupX", Desire: goTo("kitchen", 0.9)})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Updated)

	stored := f.store.Desires()
	require.Len(t, stored, 1)
	assert.Equal(t, 0.5, stored[0].Priority)

	mirrored, ok := f.mirror.Desires().Get(goTo("kitchen", 0).Fingerprint())
	require.True(t, ok)
	assert.Equal(t, 0.5, mirrored.Priority)
}

func TestHandler_AddDesireWithoutCapForcesZero(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.handler.AddDesire(context.Background(), &wire.DesireRequest{Group: "nocap", Desire: goTo("kitchen", 0.7)})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	require.Len(t, f.store.Desires(), 1)
	assert.Equal(t, 0.0, f.store.Desires()[0].Priority)
}

func TestHandler_CheckBeliefUnconfiguredGroup(t *testing.T) {
	f := newFixture(t, []bdi.Belief{atKitchen}, nil)

	resp, err := f.handler.CheckBelief(context.Background(), &wire.BeliefRequest{Group: "groupY", Belief: atKitchen})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
}

func TestHandler_CheckBeliefAndDesire(t *testing.T) {
	f := newFixture(t, []bdi.Belief{atKitchen}, []bdi.Desire{goTo("dock", 0.3)})
	ctx := context.Background()

	resp, err := f.handler.CheckBelief(ctx, &wire.BeliefRequest{Group: "readers", Belief: atKitchen})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Found)

	resp, err = f.handler.CheckBelief(ctx, &wire.BeliefRequest{Group: "readers", Belief: atDock})
	require.NoError(t, err)
	assert.False(t, resp.Found)

	resp, err = f.handler.CheckDesire(ctx, &wire.DesireRequest{Group: "groupX", Desire: bdi.Desire{Name: "go_dock"}})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Found)
}

func TestHandler_AddBeliefAlreadyPresentReturnsOnFirstRefresh(t *testing.T) {
	f := newFixtureWith(t, HandlerConfig{MaxWaitUpdates: 1000, WaitTimeout: time.Minute}, []bdi.Belief{atKitchen}, nil)

	start := time.Now()
	resp, err := f.handler.AddBelief(context.Background(), &wire.BeliefRequest{Group: "groupX", Belief: atKitchen})
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHandler_AddAndDelBelief(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	resp, err := f.handler.AddBelief(ctx, &wire.BeliefRequest{Group: "groupX", Belief: atDock})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Updated)
	assert.True(t, f.mirror.Beliefs().Contains(atDock))

	resp, err = f.handler.DelBelief(ctx, &wire.BeliefRequest{Group: "groupX", Belief: atDock})
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.False(t, f.mirror.Beliefs().Contains(atDock))
	assert.Empty(t, f.store.Beliefs())
}

func TestHandler_AddDesireAlreadyFulfilled(t *testing.T) {
	f := newFixture(t, []bdi.Belief{atKitchen}, nil)

	resp, err := f.handler.AddDesire(context.Background(), &wire.DesireRequest{Group: "groupX", Desire: goTo("kitchen", 0.4)})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Updated)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.store.Desires())
	assert.Equal(t, 0, f.mirror.Desires().Len())
}

func TestHandler_DelDesire(t *testing.T) {
	f := newFixture(t, nil, []bdi.Desire{goTo("dock", 0.3)})

	resp, err := f.handler.DelDesire(context.Background(), &wire.DesireRequest{Group: "groupX", Desire: bdi.Desire{Name: "go_dock"}})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Updated)
	assert.Empty(t, f.store.Desires())
}

func TestHandler_WriteRefusedForReadOnlyGroup(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.handler.AddBelief(context.Background(), &wire.BeliefRequest{Group: "readers", Belief: atDock})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.False(t, resp.Updated)
	assert.Empty(t, f.store.Beliefs())
}

func TestHandler_TokenGroupMismatchRefused(t *testing.T) {
	f := newFixture(t, []bdi.Belief{atKitchen}, nil)
	ctx := auth.WithAuth(context.Background(), &auth.AuthContext{Group: "readers"})

	resp, err := f.handler.CheckBelief(ctx, &wire.BeliefRequest{Group: "groupX", Belief: atKitchen})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)

	resp, err = f.handler.CheckBelief(ctx, &wire.BeliefRequest{Group: "readers", Belief: atKitchen})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
}

func TestHandler_InvalidRequests(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, err := f.handler.AddBelief(ctx, &wire.BeliefRequest{Group: "groupX"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.handler.DelDesire(ctx, &wire.DesireRequest{Group: "groupX"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.handler.IsAcceptedOperation(ctx, &wire.IsAcceptedOperationRequest{Group: "groupX", Kind: "plan", Op: wire.OpCheck})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

type silentIntents struct{ err error }

func (s silentIntents) AddBelief(context.Context, bdi.Belief) error { return s.err }
func (s silentIntents) DelBelief(context.Context, bdi.Belief) error { return s.err }
func (s silentIntents) AddDesire(context.Context, bdi.Desire) error { return s.err }
func (s silentIntents) DelDesire(context.Context, bdi.Desire) error { return s.err }

func TestHandler_NoStoreTimesOutNotUpdated(t *testing.T) {
	h := NewHandler(testPolicy(), mirror.New(), silentIntents{}, HandlerConfig{MaxWaitUpdates: 8, WaitTimeout: 30 * time.Millisecond}, nil)

	resp, err := h.AddBelief(context.Background(), &wire.BeliefRequest{Group: "groupX", Belief: atDock})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.False(t, resp.Updated)
}

func TestHandler_RefreshBudgetReleasesWaiter(t *testing.T) {
	h := NewHandler(testPolicy(), mirror.New(), silentIntents{}, HandlerConfig{MaxWaitUpdates: 3, WaitTimeout: time.Minute}, nil)

	done := make(chan *wire.UpdateResponse, 1)
	go func() {
		resp, _ := h.AddDesire(context.Background(), &wire.DesireRequest{Group: "groupX", Desire: goTo("dock", 0.2)})
		done <- resp
	}()
	require.Eventually(t, h.desireAdd.Waiting, time.Second, time.Millisecond)

	for range 3 {
		h.OnDesireSet(bdi.DesireSetSnapshot{AgentID: "robot1"})
	}
	select {
	case resp := <-done:
		assert.True(t, resp.Accepted)
		assert.False(t, resp.Updated)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released after the refresh budget")
	}
}

func TestHandler_PublishFailure(t *testing.T) {
	h := NewHandler(testPolicy(), mirror.New(), silentIntents{err: errors.New("bus down")}, HandlerConfig{MaxWaitUpdates: 8, WaitTimeout: time.Second}, nil)

	_, err := h.AddBelief(context.Background(), &wire.BeliefRequest{Group: "groupX", Belief: atDock})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestHandler_CancelledWait(t *testing.T) {
	h := NewHandler(testPolicy(), mirror.New(), silentIntents{}, HandlerConfig{MaxWaitUpdates: 8, WaitTimeout: time.Minute}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.DelBelief(ctx, &wire.BeliefRequest{Group: "groupX", Belief: atDock})
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}
