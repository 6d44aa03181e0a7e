// Package auth authenticates cross-agent requests.
//
// # Group Tokens
//
// Requesters present an HS256 JWT signed with the agent's auth.jwt_secret.
// The "sub" claim names the requester group. A token is only a proof of
// group membership: whether the group may read or write beliefs and
// desires is decided by the request policy in package multiagent, and a
// request whose group field differs from the token's group is refused.
//
//	v := auth.NewJWTVerifier([]byte(secret))
//	token, err := v.Generate("robots", 24*time.Hour)
//
// # gRPC
//
// UnaryInterceptor verifies the "authorization: Bearer <token>" metadata
// and stores an AuthContext in the request context. NoAuthUnaryInterceptor
// stores an anonymous context when no secret is configured. Clients attach
// tokens with BearerToken as per-RPC credentials.
//
// # HTTP
//
// HTTPAuthMiddleware protects the status API the same way.
package auth
