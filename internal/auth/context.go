package auth

import "context"

// Principal is the authenticated caller of a backend request.
type Principal struct {
	UserID    string
	Email     string
	SessionID string
	ExpiresAt int64 // unix seconds
	Token     string
}

// Subject returns the Casbin subject of the principal.
func (p Principal) Subject() string {
	return UserSubject(p.UserID)
}

type principalContextKey struct{}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
