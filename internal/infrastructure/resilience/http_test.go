package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

func TestDoJSONDecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	var out struct {
		Status string `json:"status"`
	}
	if err := DoJSON(srv.Client(), req, "maps", "geocode", &out); err != nil {
		t.Fatalf("DoJSON() error = %v", err)
	}
	if out.Status != "OK" {
		t.Fatalf("unexpected status %q", out.Status)
	}
}

func TestDoJSONIncludesBodyInStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	err := DoJSON(srv.Client(), req, "gemini", "generate", nil)

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status code %d", statusErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestDoJSONCapturesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	err := DoJSON(srv.Client(), req, "maps", "geocode", nil)

	class := ClassifyHTTPError(err)
	if !class.Retryable || class.RetryAfter != 3*time.Second {
		t.Fatalf("unexpected classification %+v", class)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		"":                              0,
		"5":                             5 * time.Second,
		"-1":                            0,
		"soon":                          0,
		"Sun, 01 Mar 2026 12:00:10 GMT": 10 * time.Second,
		"Sun, 01 Mar 2026 11:00:00 GMT": 0,
	}
	for in, want := range cases {
		if got := parseRetryAfter(in, now); got != want {
			t.Fatalf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{"canceled", context.Canceled, ErrorClassification{}},
		{"503", &HTTPStatusError{StatusCode: 503}, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"400", &HTTPStatusError{StatusCode: 400}, ErrorClassification{}},
		{"other", errors.New("decode"), ErrorClassification{RecordFailure: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyHTTPError(tt.err); got != tt.want {
				t.Fatalf("ClassifyHTTPError() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWrapUpstream(t *testing.T) {
	err := WrapUpstream("gemini generate", &HTTPStatusError{StatusCode: 502})
	if !domain.IsKind(err, domain.ErrUpstream) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected upstream temporary error, got %v", err)
	}

	cfgErr := domain.WrapError(domain.ErrConfiguration, "gemini", errors.New("missing key"))
	if got := WrapUpstream("gemini generate", cfgErr); got != cfgErr {
		t.Fatalf("expected kinded error to pass through, got %v", got)
	}
}
