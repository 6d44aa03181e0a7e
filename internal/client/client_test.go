// ABOUTME: Tests for the cross-agent client against a peer served over bufconn
// ABOUTME: The peer runs the real request handler on an embedded store

package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/bus"
	"github.com/2389/coven-bdi/internal/config"
	"github.com/2389/coven-bdi/internal/mirror"
	"github.com/2389/coven-bdi/internal/multiagent"
	"github.com/2389/coven-bdi/internal/wire"
)

const testSecret = "client-test-secret-0123456789abcdefgh"

var (
	boxOnTable = bdi.NewPredicate("on", "box", "table")
	armFree    = bdi.NewPredicate("free", "arm")
)

type peerFixture struct {
	bus   *bus.Memory
	store *bus.Store
	lis   *bufconn.Listener
}

// startPeer runs agent "robot2" accepting reads and writes from "robots".
func startPeer(t *testing.T, verifier auth.TokenVerifier, beliefs ...bdi.Belief) *peerFixture {
	t.Helper()
	b := bus.NewMemory(nil)
	t.Cleanup(func() { b.Close() })
	ch := bus.NewChannels(b, "robot2", nil)

	policy := multiagent.NewPolicy(config.RequestsConfig{
		AcceptBeliefsR:     []string{"robots"},
		AcceptBeliefsW:     []string{"robots"},
		AcceptDesiresR:     []string{"robots"},
		AcceptDesiresW:     []string{"robots"},
		AcceptDesiresMaxPr: []float64{0.8},
	})
	m := mirror.New()
	h := multiagent.NewHandler(policy, m, ch, multiagent.HandlerConfig{MaxWaitUpdates: 8, WaitTimeout: 2 * time.Second}, nil)
	_, err := ch.OnBeliefSet(func(s bdi.BeliefSetSnapshot) { h.OnBeliefSet(s) })
	require.NoError(t, err)
	_, err = ch.OnDesireSet(func(s bdi.DesireSetSnapshot) { h.OnDesireSet(s) })
	require.NoError(t, err)

	store := bus.NewStore(ch, beliefs, nil, nil)
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(store.Stop)
	require.Eventually(t, m.Synced, time.Second, 5*time.Millisecond)

	lis := bufconn.Listen(1 << 20)
	srv := multiagent.NewServer(h, multiagent.ServerConfig{Verifier: verifier, RateLimitRPS: 100, RateLimitBurst: 100}, nil)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	return &peerFixture{bus: b, store: store, lis: lis}
}

func (p *peerFixture) client(t *testing.T, group, token string) *Client {
	t.Helper()
	c := New(Config{
		Group: group,
		Token: token,
		Peers: map[string]string{"robot2": "passthrough:///bufnet"},
		Bus:   p.bus,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return p.lis.DialContext(ctx) }),
		},
	}, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_BeliefRoundTrip(t *testing.T) {
	peer := startPeer(t, nil, armFree)
	c := peer.client(t, "robots", "")
	ctx := context.Background()

	accepted, found, err := c.CheckBelief(ctx, "robot2", armFree)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, found)

	accepted, updated, err := c.UpdBelief(ctx, "robot2", boxOnTable, true)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, updated)
	assert.True(t, bdi.NewBeliefSet(peer.store.Beliefs()).Contains(boxOnTable))

	accepted, updated, err = c.UpdBelief(ctx, "robot2", boxOnTable, false)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, updated)
	assert.False(t, bdi.NewBeliefSet(peer.store.Beliefs()).Contains(boxOnTable))
}

func TestClient_DesireRoundTripClamped(t *testing.T) {
	peer := startPeer(t, nil)
	c := peer.client(t, "robots", "")
	ctx := context.Background()
	d := bdi.Desire{Name: "stack", Priority: 1, Target: []bdi.Belief{boxOnTable}}

	accepted, updated, err := c.UpdDesire(ctx, "robot2", d, true, false)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, updated)
	require.Len(t, peer.store.Desires(), 1)
	assert.Equal(t, 0.8, peer.store.Desires()[0].Priority)

	accepted, found, err := c.CheckDesire(ctx, "robot2", bdi.Desire{Name: "stack"})
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, found)

	ok, maxPr, err := c.IsAcceptedOperation(ctx, "robot2", wire.KindDesire, wire.OpWrite)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.8, maxPr)
}

func TestClient_RefusedGroup(t *testing.T) {
	peer := startPeer(t, nil, armFree)
	c := peer.client(t, "strangers", "")

	accepted, _, err := c.CheckBelief(context.Background(), "robot2", armFree)
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestClient_BearerToken(t *testing.T) {
	verifier := auth.NewJWTVerifier([]byte(testSecret))
	peer := startPeer(t, verifier, armFree)
	tok, err := verifier.Generate("robots", time.Hour)
	require.NoError(t, err)

	accepted, found, err := peer.client(t, "robots", tok).CheckBelief(context.Background(), "robot2", armFree)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, found)

	_, _, err = peer.client(t, "robots", "").CheckBelief(context.Background(), "robot2", armFree)
	assert.Error(t, err)
}

func TestClient_UnknownPeer(t *testing.T) {
	c := New(Config{Group: "robots"}, nil)
	defer c.Close()

	_, _, err := c.CheckBelief(context.Background(), "nobody", armFree)
	assert.True(t, errors.Is(err, ErrUnknownPeer))
}

func TestClient_Closed(t *testing.T) {
	c := New(Config{Group: "robots", Peers: map[string]string{"robot2": "localhost:1"}}, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, _, err := c.UpdBelief(context.Background(), "robot2", armFree, true)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_MonitorDesireFulfilment(t *testing.T) {
	peer := startPeer(t, nil)
	c := peer.client(t, "robots", "")
	ctx := context.Background()
	d := bdi.Desire{Name: "stack", Priority: 0.5, Target: []bdi.Belief{boxOnTable}}

	assert.False(t, c.IsMonitoredDesireFulfilled("robot2", d))

	_, updated, err := c.UpdDesire(ctx, "robot2", d, true, true)
	require.NoError(t, err)
	require.True(t, updated)
	assert.False(t, c.IsMonitoredDesireFulfilled("robot2", d))

	_, _, err = c.UpdBelief(ctx, "robot2", boxOnTable, true)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return c.IsMonitoredDesireFulfilled("robot2", d) }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Unmonitor("robot2", d))
	assert.False(t, c.IsMonitoredDesireFulfilled("robot2", d))
}

func TestClient_MonitorWithoutBus(t *testing.T) {
	c := New(Config{Group: "robots"}, nil)
	defer c.Close()

	assert.ErrorIs(t, c.Monitor("robot2", bdi.Desire{Name: "stack"}), ErrNoBus)
}

func TestClient_PinnedRequestIDReplays(t *testing.T) {
	peer := startPeer(t, nil)
	c := peer.client(t, "robots", "")
	ctx := WithRequestID(context.Background(), "retry-1")

	_, updated, err := c.UpdBelief(ctx, "robot2", boxOnTable, true)
	require.NoError(t, err)
	require.True(t, updated)

	peer.store.ApplyDelBelief(context.Background(), boxOnTable)

	_, updated, err = c.UpdBelief(ctx, "robot2", boxOnTable, true)
	require.NoError(t, err)
	assert.True(t, updated, "replayed response")
	assert.False(t, bdi.NewBeliefSet(peer.store.Beliefs()).Contains(boxOnTable))
}
