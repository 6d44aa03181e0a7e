// ABOUTME: Per-group token bucket limiting of cross-agent requests
// ABOUTME: Unary interceptor rejecting over-budget calls with ResourceExhausted

package multiagent

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/wire"
)

// RateLimiter keeps one token bucket per requester key.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter allows rps requests per second per key with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow takes one token from key's bucket.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	r.mu.Unlock()
	return l.Allow()
}

// requestKey names the bucket a request draws from. An authenticated
// caller is keyed by its token group whatever group the request claims.
// Anonymous callers fall back to the claimed group, then the peer address.
func requestKey(ctx context.Context, req any) string {
	if a := auth.FromContext(ctx); a != nil && !a.Anonymous && a.Group != "" {
		return a.Group
	}
	if g := claimedGroup(req); g != "" {
		return g
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

func claimedGroup(req any) string {
	switch m := req.(type) {
	case *wire.BeliefRequest:
		return m.Group
	case *wire.DesireRequest:
		return m.Group
	case *wire.IsAcceptedOperationRequest:
		return m.Group
	}
	return ""
}

// UnaryInterceptor rejects requests over the key's budget.
func (r *RateLimiter) UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := requestKey(ctx, req)
		if !r.Allow(key) {
			if logger != nil {
				logger.Warn("rate limited", "key", key, "method", info.FullMethod)
			}
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
