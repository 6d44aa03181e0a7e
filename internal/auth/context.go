// ABOUTME: Authenticated requester identity carried through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// AuthContext is the identity established by the auth interceptor.
type AuthContext struct {
	// Group is the requester group named by the token's sub claim.
	Group string
	// Anonymous is set when authentication is disabled.
	Anonymous bool
}

// Permits reports whether a request claiming group may proceed. Anonymous
// contexts permit any group.
func (a *AuthContext) Permits(group string) bool {
	if a == nil {
		return false
	}
	return a.Anonymous || a.Group == group
}

type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
