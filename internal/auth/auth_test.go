package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfm/internal/core"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	assert.NoError(t, CheckPassword(hash, "s3cret!"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), core.ErrUnauthenticated)

	_, err = HashPassword("12345")
	assert.ErrorIs(t, err, core.ErrWeakPassword)
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = HashPassword(strings.Repeat("x", MaxPasswordLen))
	assert.NoError(t, err)
	_, err = HashPassword(strings.Repeat("x", MaxPasswordLen+1))
	assert.ErrorIs(t, err, core.ErrPasswordTooLong)
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestTokensIssueAndResolve(t *testing.T) {
	clock := &stepClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens := NewTokens("0123456789abcdef", time.Hour, clock)

	tok, exp, err := tokens.Issue(core.User{ID: 42, Email: "ann@example.com"})
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), exp)

	for _, cred := range []string{tok, "Bearer " + tok, "bearer  " + tok} {
		id, err := tokens.Resolve(cred)
		require.NoError(t, err, cred)
		assert.Equal(t, core.ID(42), id)
	}
}

func TestTokensRejectInvalid(t *testing.T) {
	clock := &stepClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens := NewTokens("0123456789abcdef", time.Hour, clock)
	other := NewTokens("another-secret-0123", time.Hour, clock)
	foreign, _, err := other.Issue(core.User{ID: 1})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1", Issuer: issuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, cred := range map[string]string{
		"empty":        "",
		"bearer only":  "Bearer ",
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": foreign,
		"alg none":     unsigned,
	} {
		_, err := tokens.Resolve(cred)
		assert.ErrorIs(t, err, core.ErrUnauthenticated, name)
	}
}

func TestTokensExpire(t *testing.T) {
	clock := &stepClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens := NewTokens("0123456789abcdef", time.Hour, clock)
	tok, _, err := tokens.Issue(core.User{ID: 7})
	require.NoError(t, err)

	_, err = tokens.Resolve(tok)
	require.NoError(t, err, "resolving populates the cache")

	clock.t = clock.t.Add(time.Hour + time.Second)
	_, err = tokens.Resolve(tok)
	assert.ErrorIs(t, err, core.ErrUnauthenticated, "a cached token must not outlive its expiry")
}
