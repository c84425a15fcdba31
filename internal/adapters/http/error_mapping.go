package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

// mapErrorToHTTPStatus checks authentication before upstream kinds: an
// identity provider outage is reported to the client as 401.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrConfiguration):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrRateLimited), domain.IsKind(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrParse):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrUpstream):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage never exposes internal causes except for validation errors,
// which only describe the caller's own input.
func clientMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrConfiguration):
		return "server configuration missing"
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "missing or invalid credential"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return err.Error()
	case domain.IsKind(err, domain.ErrNotFound):
		return "not found"
	case domain.IsKind(err, domain.ErrTooLarge):
		return "artifact exceeds the 10 MiB limit"
	case domain.IsKind(err, domain.ErrRateLimited):
		return "rate limit exceeded"
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return "monthly quota exceeded"
	case domain.IsKind(err, domain.ErrConflict):
		return "the job is not in a state that allows this request"
	case domain.IsKind(err, domain.ErrUpstream), domain.IsKind(err, domain.ErrTemporary):
		return "an upstream service is unavailable"
	case domain.IsKind(err, domain.ErrParse):
		return "the document could not be read"
	default:
		return "extraction failed"
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody{Error: clientMessage(err), Kind: domain.KindName(err)})
}

func writeKindError(w http.ResponseWriter, status int, kind error, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: domain.KindName(kind)})
}

var errMissingIdentity = domain.WrapError(domain.ErrUnauthorized, "identity", errors.New("no identity in request context"))
