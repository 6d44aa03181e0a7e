// ABOUTME: Replay of write responses for requests retried with the same request id
// ABOUTME: Backed by the dedupe TTL cache; only successful writes are remembered

package multiagent

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/2389/coven-bdi/internal/dedupe"
	"github.com/2389/coven-bdi/internal/wire"
)

// Replay cache defaults.
const (
	DefaultReplayTTL  = 2 * time.Minute
	DefaultReplaySize = 4096
)

var writeMethods = map[string]bool{
	wire.AgentRequests_AddBelief_FullMethodName: true,
	wire.AgentRequests_DelBelief_FullMethodName: true,
	wire.AgentRequests_AddDesire_FullMethodName: true,
	wire.AgentRequests_DelDesire_FullMethodName: true,
}

func requestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(wire.RequestIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

// replayInterceptor answers a write whose request id was already served
// with the stored response. Keys include the method and requester so ids
// from different groups never collide.
func replayInterceptor(cache *dedupe.Cache[*wire.UpdateResponse], logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !writeMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		id := requestID(ctx)
		if id == "" {
			return handler(ctx, req)
		}

		key := info.FullMethod + "|" + requestKey(ctx, req) + "|" + id
		if resp, ok := cache.Get(key); ok {
			logger.Info("replaying write", "method", info.FullMethod, "request_id", id,
				"accepted", resp.Accepted, "updated", resp.Updated)
			replay := *resp
			return &replay, nil
		}

		resp, err := handler(ctx, req)
		if err != nil {
			return resp, err
		}
		// Refusals and unconfirmed writes stay retryable.
		if ur, ok := resp.(*wire.UpdateResponse); ok && ur.Accepted && ur.Updated {
			stored := *ur
			cache.Put(key, &stored)
		}
		return resp, nil
	}
}
