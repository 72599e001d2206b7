// Package auth issues and verifies stateless bearer tokens and resolves their
// subject to a registered user.
//
// Tokens are HS256 JWTs carrying the user id as subject and an expiry. Nothing
// is stored server side, so a token stays valid until it expires: there is no
// revocation list, and deleting or changing a user does not invalidate tokens
// already handed out (an unknown subject is rejected at resolution time).
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification errors. Callers map all of them to 401.
var (
	ErrMissing        = errors.New("auth: token missing")
	ErrMalformed      = errors.New("auth: token malformed")
	ErrExpired        = errors.New("auth: token expired")
	ErrUnknownSubject = errors.New("auth: unknown subject")
)

// DefaultTTL is the token lifetime used when none is configured.
const DefaultTTL = 24 * time.Hour

// Identity is the authenticated principal a token is issued for.
type Identity struct {
	ID       string
	Username string
}

// Claims are the JWT claims carried by an access token.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenAuthority signs and verifies access tokens. It is immutable after
// construction and safe for concurrent use.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// Option customizes a TokenAuthority.
type Option func(*TokenAuthority)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *TokenAuthority) { a.now = now }
}

// NewTokenAuthority returns an authority signing with secret. A non-positive
// ttl falls back to DefaultTTL.
func NewTokenAuthority(secret string, ttl time.Duration, opts ...Option) (*TokenAuthority, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	a := &TokenAuthority{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	return a, nil
}

// TTL returns the configured token lifetime.
func (a *TokenAuthority) TTL() time.Duration { return a.ttl }

// Issue returns a signed token for id and its expiry instant.
func (a *TokenAuthority) Issue(id Identity) (string, time.Time, error) {
	if id.ID == "" {
		return "", time.Time{}, errors.New("auth: identity id must not be empty")
	}
	now := a.now()
	// exp is encoded in whole seconds; round up so a token never lives
	// shorter than the configured TTL.
	exp := now.Add(a.ttl)
	if r := exp.Truncate(time.Second); !r.Equal(exp) {
		exp = r.Add(time.Second)
	}
	claims := Claims{
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and expiry and returns the subject id.
func (a *TokenAuthority) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissing
	}
	claims := &Claims{}
	tok, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	case !tok.Valid || claims.Subject == "":
		return "", ErrMalformed
	}
	return claims.Subject, nil
}
