// ABOUTME: gRPC server exposing the request handler with auth, rate limiting and health
// ABOUTME: Interceptor chain: auth, per-group rate limit, then write replay by request id

package multiagent

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/dedupe"
	"github.com/2389/coven-bdi/internal/wire"
)

// ServerConfig configures the request server.
type ServerConfig struct {
	// Verifier enables bearer auth. Nil serves anonymous requests.
	Verifier       auth.TokenVerifier
	RateLimitRPS   float64
	RateLimitBurst int
	// ReplayTTL and ReplaySize bound the write replay cache. Zero values
	// use DefaultReplayTTL and DefaultReplaySize.
	ReplayTTL  time.Duration
	ReplaySize int
}

// Server is the agent's gRPC endpoint for cross-agent requests.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	replay *dedupe.Cache[*wire.UpdateResponse]
	logger *slog.Logger
}

// NewServer builds a gRPC server serving h and the standard health service.
// Health starts NOT_SERVING until SetServing is called.
func NewServer(h *Handler, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "grpc")

	authInterceptor := auth.NoAuthUnaryInterceptor()
	if cfg.Verifier != nil {
		authInterceptor = auth.UnaryInterceptor(cfg.Verifier, logger)
		logger.Info("auth interceptor enabled (JWT)")
	} else {
		logger.Warn("auth disabled - no jwt_secret configured")
	}
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	if cfg.ReplayTTL <= 0 {
		cfg.ReplayTTL = DefaultReplayTTL
	}
	if cfg.ReplaySize <= 0 {
		cfg.ReplaySize = DefaultReplaySize
	}
	replay := dedupe.New[*wire.UpdateResponse](cfg.ReplayTTL, cfg.ReplaySize)

	gs := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			skipHealth(authInterceptor),
			limiter.UnaryInterceptor(logger),
			replayInterceptor(replay, logger),
		),
	)
	wire.RegisterAgentRequestsServer(gs, h)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(wire.AgentRequestsServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{grpc: gs, health: hs, replay: replay, logger: logger}
}

// skipHealth lets health probes through without credentials.
func skipHealth(next grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		return next(ctx, req, info, handler)
	}
}

// GRPC returns the underlying server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// SetServing flips the health status of the server and the request service.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(wire.AgentRequestsServiceName, st)
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop drains in-flight requests and stops the server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.replay.Close()
}
