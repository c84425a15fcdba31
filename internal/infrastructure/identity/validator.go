package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
	"github.com/liliganster/tp-companion/internal/infrastructure/cache"
)

const (
	expirySafetyMargin = 30 * time.Second
	defaultTTL         = 60 * time.Second
)

type Options struct {
	MaxTTL   time.Duration
	Capacity int
	Now      cache.Clock
}

// Validator resolves bearer credentials, serving repeat lookups from a
// process-wide cache until the credential's own expiry.
type Validator struct {
	provider ports.IdentityProvider
	cache    *cache.TTLCache[domain.Identity]
	maxTTL   time.Duration
	now      cache.Clock
}

func NewValidator(provider ports.IdentityProvider, opts Options) *Validator {
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = 5 * time.Minute
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 500
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Validator{
		provider: provider,
		cache:    cache.NewTTLCache[domain.Identity](opts.Capacity, opts.Now),
		maxTTL:   opts.MaxTTL,
		now:      opts.Now,
	}
}

func (v *Validator) Validate(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "validate session", errors.New("missing bearer credential"))
	}

	key := cacheKey(token)
	if id, ok := v.cache.Get(key); ok {
		return id, nil
	}

	id, err := v.provider.Introspect(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}

	expiresAt := CacheExpiry(token, v.now(), v.maxTTL)
	v.cache.PutUntil(key, id, expiresAt)
	slog.Debug("identity_cached", "user_id", id.ID, "expires_at", expiresAt)
	return id, nil
}

// CacheExpiry computes how long an introspected identity may be reused:
// min(exp - 30s, now + maxTTL), or min(now + 60s, now + maxTTL) when the
// credential carries no readable exp claim.
func CacheExpiry(token string, now time.Time, maxTTL time.Duration) time.Time {
	ceiling := now.Add(maxTTL)
	expiresAt := now.Add(defaultTTL)
	if exp, ok := expiryClaim(token); ok {
		expiresAt = exp.Add(-expirySafetyMargin)
	}
	if expiresAt.After(ceiling) {
		return ceiling
	}
	return expiresAt
}

// expiryClaim reads exp from the credential's payload segment. The signature
// is not checked here; the identity provider already vouched for the token.
func expiryClaim(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func cacheKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
