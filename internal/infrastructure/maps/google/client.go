package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

// Client talks to the Maps web service APIs. Those APIs answer 200 and put
// the outcome in a status field.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, apiKey string, timeout time.Duration, exec *resilience.Executor) *Client {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com"
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

// StatusError is a non-OK status reported in the response body.
type StatusError struct {
	Operation string
	Status    string
	Message   string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("maps %s: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("maps %s: %s: %s", e.Operation, e.Status, e.Message)
}

type envelope interface {
	status() (string, string)
}

func get[T envelope](ctx context.Context, c *Client, path, operation string, query url.Values) (T, error) {
	var zero T
	if c.apiKey == "" {
		return zero, domain.WrapError(domain.ErrConfiguration, "maps "+operation, errors.New("google maps api key not set"))
	}
	query.Set("key", c.apiKey)
	endpoint := c.baseURL + path + "?" + query.Encode()

	out, err := resilience.Call(ctx, c.exec, "maps."+operation, func(ctx context.Context) (T, error) {
		var out T
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return out, fmt.Errorf("create %s request: %w", operation, err)
		}
		if err := resilience.DoJSON(c.httpClient, req, "maps", operation, &out); err != nil {
			return out, err
		}
		if status, msg := out.status(); status != "OK" {
			return out, &StatusError{Operation: operation, Status: status, Message: msg}
		}
		return out, nil
	}, classifyMapsError)
	if err != nil {
		return zero, mapStatusError("maps "+operation, err)
	}
	return out, nil
}

func classifyMapsError(err error) resilience.ErrorClassification {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	return resilience.ClassifyHTTPError(err)
}

func mapStatusError(operation string, err error) error {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return resilience.WrapUpstream(operation, err)
	}
	switch statusErr.Status {
	case "ZERO_RESULTS", "NOT_FOUND":
		return domain.WrapError(domain.ErrNotFound, operation, err)
	case "REQUEST_DENIED":
		return domain.WrapError(domain.ErrConfiguration, operation, err)
	case "INVALID_REQUEST", "MAX_WAYPOINTS_EXCEEDED", "MAX_ROUTE_LENGTH_EXCEEDED":
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	default:
		return resilience.WrapUpstream(operation, err)
	}
}
