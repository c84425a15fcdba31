package httpadapter

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/infrastructure/ratelimit"
)

func bearerToken(headerValue string) (string, bool) {
	headerValue = strings.TrimSpace(headerValue)
	const bearerPrefix = "Bearer "
	if len(headerValue) < len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(headerValue[len(bearerPrefix):])
	return token, token != ""
}

// authMiddleware resolves the bearer credential into an identity and stores
// it in the request context.
func (rt *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "authenticate", errors.New("bearer credential required")))
			return
		}
		who, err := rt.sessions.Validate(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		noteUser(r.Context(), who.ID)
		next.ServeHTTP(w, r.WithContext(domain.ContextWithIdentity(r.Context(), who)))
	})
}

// RateLimiter decides per-user fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, name, identifier string, limit int, window time.Duration) ratelimit.Decision
}

// limited applies the named per-user window to a route.
func (rt *Router) limited(name string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, ok := rt.identity(w, r)
			if !ok {
				return
			}
			if !rt.allow(w, r, name, who.ID, limit) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allow writes the 429 itself; callers return immediately when it reports
// false.
func (rt *Router) allow(w http.ResponseWriter, r *http.Request, name, identifier string, limit int) bool {
	decision := rt.limiter.Allow(r.Context(), name, identifier, limit, rt.cfg.RateLimitWindow)
	if decision.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if decision.Allowed {
		return true
	}

	retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	if rt.rateObserver != nil {
		rt.rateObserver.RateLimited(name)
	}
	writeKindError(w, http.StatusTooManyRequests, domain.ErrRateLimited, "rate limit exceeded")
	return false
}
