package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pfm/internal/cache"
	"pfm/internal/core"
)

const (
	issuer         = "pfm"
	resolveCacheSz = 1024
	resolveCacheTT = 5 * time.Minute
)

// Claims carried by access tokens. Subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens issues HS256 access tokens and resolves them back to a user id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  core.Clock
	parser *jwt.Parser
	cache  *cache.LRUCache[core.ID]
}

func NewTokens(secret string, ttl time.Duration, clock core.Clock) *Tokens {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
		cache: cache.NewLRUCache[core.ID](resolveCacheSz, resolveCacheTT).WithClock(clock.Now),
	}
}

// Cache exposes the resolver cache so it can be registered for cleanup.
func (t *Tokens) Cache() *cache.LRUCache[core.ID] { return t.cache }

// Issue signs a token for u and returns it with its expiry.
func (t *Tokens) Issue(u core.User) (string, time.Time, error) {
	now := t.clock.Now()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(int64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Resolve accepts "Bearer <token>" or a bare token and returns the user id it
// was issued for. Any failure is core.ErrUnauthenticated.
func (t *Tokens) Resolve(credential string) (core.ID, error) {
	raw := strings.TrimSpace(credential)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "Bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: missing credential", core.ErrUnauthenticated)
	}

	key := cacheKey(raw)
	if id, ok := t.cache.Get(key); ok {
		return id, nil
	}

	var claims Claims
	_, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %v", core.ErrUnauthenticated, errors.New("invalid subject"))
	}

	t.cache.SetUntil(key, core.ID(id), claims.ExpiresAt.Time)
	return core.ID(id), nil
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
