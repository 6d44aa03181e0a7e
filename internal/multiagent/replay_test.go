// ABOUTME: Tests for the write replay interceptor
// ABOUTME: Only accepted and applied writes are replayed; reads and id-less calls pass through

package multiagent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/2389/coven-bdi/internal/dedupe"
	"github.com/2389/coven-bdi/internal/wire"
)

// scriptedHandler answers with the next response and counts calls.
type scriptedHandler struct {
	responses []*wire.UpdateResponse
	calls     int
}

func (s *scriptedHandler) handle(context.Context, any) (any, error) {
	resp := s.responses[min(s.calls, len(s.responses)-1)]
	s.calls++
	return resp, nil
}

func newReplay(t *testing.T) grpc.UnaryServerInterceptor {
	t.Helper()
	cache := dedupe.New[*wire.UpdateResponse](DefaultReplayTTL, 16)
	t.Cleanup(cache.Close)
	return replayInterceptor(cache, slog.Default())
}

func withRequestID(id string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(wire.RequestIDHeader, id))
}

func TestReplay_UnconfirmedWriteIsRetried(t *testing.T) {
	replay := newReplay(t)
	h := &scriptedHandler{responses: []*wire.UpdateResponse{
		{Accepted: true, Updated: false},
		{Accepted: true, Updated: true},
		{Accepted: true, Updated: false},
	}}
	info := &grpc.UnaryServerInfo{FullMethod: wire.AgentRequests_AddBelief_FullMethodName}
	req := &wire.BeliefRequest{Group: "groupX", Belief: atDock}

	first, err := replay(withRequestID("req-1"), req, info, h.handle)
	require.NoError(t, err)
	assert.False(t, first.(*wire.UpdateResponse).Updated)

	second, err := replay(withRequestID("req-1"), req, info, h.handle)
	require.NoError(t, err)
	assert.True(t, second.(*wire.UpdateResponse).Updated)

	third, err := replay(withRequestID("req-1"), req, info, h.handle)
	require.NoError(t, err)
	assert.True(t, third.(*wire.UpdateResponse).Updated, "confirmed write is replayed")
	assert.Equal(t, 2, h.calls)
}

func TestReplay_RefusalIsNotRemembered(t *testing.T) {
	replay := newReplay(t)
	h := &scriptedHandler{responses: []*wire.UpdateResponse{{Accepted: false}}}
	info := &grpc.UnaryServerInfo{FullMethod: wire.AgentRequests_DelDesire_FullMethodName}
	req := &wire.DesireRequest{Group: "readers", Desire: goTo("dock", 0.3)}

	for range 2 {
		_, err := replay(withRequestID("req-1"), req, info, h.handle)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.calls)
}

func TestReplay_WithoutRequestIDPassesThrough(t *testing.T) {
	replay := newReplay(t)
	h := &scriptedHandler{responses: []*wire.UpdateResponse{{Accepted: true, Updated: true}}}
	info := &grpc.UnaryServerInfo{FullMethod: wire.AgentRequests_AddDesire_FullMethodName}
	req := &wire.DesireRequest{Group: "groupX", Desire: goTo("dock", 0.3)}

	for range 2 {
		_, err := replay(context.Background(), req, info, h.handle)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.calls)
}
