package auth

import (
	"context"
	"strings"
)

// Resolver maps a verified subject to a live identity. Implementations return
// ErrUnknownSubject when the subject no longer exists.
type Resolver interface {
	ResolveSubject(ctx context.Context, id string) (Identity, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id string) (Identity, error)

// ResolveSubject calls f.
func (f ResolverFunc) ResolveSubject(ctx context.Context, id string) (Identity, error) {
	return f(ctx, id)
}

// Gate authenticates requests from their Authorization header.
type Gate struct {
	Tokens   *TokenAuthority
	Resolver Resolver
}

// NewGate returns a Gate verifying with tokens and resolving with r.
func NewGate(tokens *TokenAuthority, r Resolver) *Gate {
	return &Gate{Tokens: tokens, Resolver: r}
}

// Authenticate parses "Bearer <token>", verifies it and resolves the subject.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (Identity, error) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return Identity{}, err
	}
	sub, err := g.Tokens.Verify(raw)
	if err != nil {
		return Identity{}, err
	}
	return g.Resolver.ResolveSubject(ctx, sub)
}

// BearerToken extracts the token from an Authorization header value.
// An empty header or a bare "Bearer" scheme yields ErrMissing; any other
// shape yields ErrMalformed.
func BearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	switch {
	case len(parts) == 0:
		return "", ErrMissing
	case len(parts) == 1 && strings.EqualFold(parts[0], "bearer"):
		return "", ErrMissing
	case len(parts) != 2 || !strings.EqualFold(parts[0], "bearer"):
		return "", ErrMalformed
	}
	return parts[1], nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.ID != ""
}
