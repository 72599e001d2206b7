package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newAuthority(t *testing.T, clk *fakeClock) *TokenAuthority {
	t.Helper()
	a, err := NewTokenAuthority("test-secret", DefaultTTL, WithClock(clk.Now))
	require.NoError(t, err)
	return a
}

func TestNewTokenAuthority_RejectsEmptySecret(t *testing.T) {
	_, err := NewTokenAuthority("  ", time.Hour)
	require.Error(t, err)
}

func TestNewTokenAuthority_DefaultTTL(t *testing.T) {
	a, err := NewTokenAuthority("s", 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, a.TTL())
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	a := newAuthority(t, clk)

	tok, exp, err := a.Issue(Identity{ID: "user-1", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, clk.t.Add(24*time.Hour), exp)

	clk.t = clk.t.Add(23 * time.Hour)
	sub, err := a.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestVerify_Expired(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	a := newAuthority(t, clk)

	tok, _, err := a.Issue(Identity{ID: "user-1"})
	require.NoError(t, err)

	clk.t = clk.t.Add(24*time.Hour + time.Second)
	_, err = a.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestIssue_ExpiryNeverShorterThanTTL(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 600_000_000, time.UTC)
	clk := &fakeClock{t: issued}
	a := newAuthority(t, clk)

	tok, exp, err := a.Issue(Identity{ID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 12, 0, 1, 0, time.UTC), exp)

	// just before the full TTL has elapsed the token still verifies
	clk.t = issued.Add(24*time.Hour - time.Millisecond)
	sub, err := a.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	clk.t = exp.Add(time.Millisecond)
	_, err = a.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_Missing(t *testing.T) {
	a := newAuthority(t, &fakeClock{t: time.Now()})
	_, err := a.Verify("   ")
	assert.ErrorIs(t, err, ErrMissing)
}

func TestVerify_Malformed(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	a := newAuthority(t, clk)
	good, _, err := a.Issue(Identity{ID: "user-1"})
	require.NoError(t, err)

	other, err := NewTokenAuthority("other-secret", time.Hour, WithClock(clk.Now))
	require.NoError(t, err)
	foreign, _, err := other.Issue(Identity{ID: "user-1"})
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"two segments": "a.b",
		"tampered":     good[:len(good)-2] + flip(good[len(good)-2:]),
		"foreign key":  foreign,
		"no subject":   noSub,
		"no expiry":    noExp,
		"wrong alg":    hs512,
		"alg none":     unsignedToken(t, clk.t),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify(tok)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

// A token is not tied to any server-side state: it keeps verifying until it
// expires, whatever happens to the account in between.
func TestVerify_NoRevocation(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	a := newAuthority(t, clk)
	tok, _, err := a.Issue(Identity{ID: "user-1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		sub, err := a.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "user-1", sub)
	}
}

func TestIssue_RejectsEmptyIdentity(t *testing.T) {
	a := newAuthority(t, &fakeClock{t: time.Now()})
	_, _, err := a.Issue(Identity{})
	assert.Error(t, err)
}

func flip(s string) string {
	if strings.HasPrefix(s, "A") {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}

func unsignedToken(t *testing.T, now time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return s
}
