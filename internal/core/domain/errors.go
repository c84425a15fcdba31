package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("server configuration missing")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrTooLarge      = errors.New("artifact too large")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrQuotaExceeded = errors.New("monthly quota exceeded")
	ErrUpstream      = errors.New("upstream unavailable")
	ErrParse         = errors.New("unparseable extraction output")
	ErrConflict      = errors.New("state conflict")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName returns the machine-readable name of the first matching error kind.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUnauthorized):
		return "authentication"
	case errors.Is(err, ErrInvalidInput):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrParse):
		return "parse_failure"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrTemporary):
		return "upstream_unavailable"
	default:
		return "internal"
	}
}
