// ABOUTME: gRPC interceptors and client credentials for bearer group tokens
// ABOUTME: Extracts the token from metadata and populates context for handlers

package auth

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// logAuthFailure logs an authentication failure with structured context.
func logAuthFailure(logger *slog.Logger, ctx context.Context, reason string, attrs ...any) {
	if logger == nil {
		return
	}
	baseAttrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		baseAttrs = append(baseAttrs, "peer_addr", p.Addr.String())
	}
	baseAttrs = append(baseAttrs, attrs...)
	logger.Warn("auth failure", baseAttrs...)
}

// extractBearerToken extracts a bearer token from an authorization value.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

func extractAuth(ctx context.Context, tokens TokenVerifier, logger *slog.Logger) (*AuthContext, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		logAuthFailure(logger, ctx, "missing_metadata")
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	var header string
	if values := md.Get("authorization"); len(values) > 0 {
		header = values[0]
	}
	token, errMsg := extractBearerToken(header)
	if errMsg != "" {
		logAuthFailure(logger, ctx, "bad_header", "error", errMsg)
		return nil, status.Error(codes.Unauthenticated, errMsg)
	}

	group, err := tokens.Verify(token)
	if err != nil {
		logAuthFailure(logger, ctx, "jwt_auth_failed", "error", err.Error())
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return &AuthContext{Group: group}, nil
}

// UnaryInterceptor returns a gRPC unary interceptor that authenticates
// requests. The optional logger enables auth failure logging.
func UnaryInterceptor(tokens TokenVerifier, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		authCtx, err := extractAuth(ctx, tokens, logger)
		if err != nil {
			return nil, err
		}
		return handler(WithAuth(ctx, authCtx), req)
	}
}

// NoAuthUnaryInterceptor injects an anonymous auth context when
// authentication is disabled.
func NoAuthUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(WithAuth(ctx, &AuthContext{Anonymous: true}), req)
	}
}

// BearerToken is client-side per-RPC credentials carrying a group token.
type BearerToken struct {
	Token string
	// Secure requires transport security. Tailnet and local links run
	// without TLS, so it defaults to false.
	Secure bool
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (b BearerToken) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.Token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (b BearerToken) RequireTransportSecurity() bool {
	return b.Secure
}
