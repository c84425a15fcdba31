package gemini

import (
	"errors"
	"net/http"

	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

// classifyGeminiError treats quota and auth rejections as permanent for the
// breaker so a bad key does not trip it for every other caller.
func classifyGeminiError(err error) resilience.ErrorClassification {
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	return resilience.ClassifyHTTPError(err)
}
