// Package client is a typed Go client for the tp-companion API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

const serviceName = "tp-companion"

// APIError is a non-2xx answer decoded from the API error body.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// JobStatus is the polling view of an extraction job.
type JobStatus struct {
	ID        string           `json:"id"`
	Status    domain.JobStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	Filename  string           `json:"filename,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Finished reports whether polling can stop.
func (s JobStatus) Finished() bool {
	return s.Status.Terminal() || s.Status == domain.JobNeedsReview
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	var out JobStatus
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, "", "get job", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetResult(ctx context.Context, jobID string) (*domain.CallSheetExtraction, error) {
	var out domain.CallSheetExtraction
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID)+"/result", nil, "", "get result", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetReview(ctx context.Context, jobID string) (*domain.Review, error) {
	var out domain.Review
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID)+"/review", nil, "", "get review", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConfirmReview(ctx context.Context, jobID string, in domain.ReviewConfirmation) (*domain.Trip, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal confirmation: %w", err)
	}
	var out domain.Trip
	if err := c.do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(jobID)+"/confirm", bytes.NewReader(body), "application/json", "confirm review", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExtractExpense(ctx context.Context, req domain.ExpenseExtractRequest) (*domain.ExpenseExtraction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal expense request: %w", err)
	}
	var out domain.ExpenseExtraction
	if err := c.do(ctx, http.MethodPost, "/v1/expenses/extract", bytes.NewReader(body), "application/json", "extract expense", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadCallSheet creates an extraction job. The returned job is queued.
func (c *Client) UploadCallSheet(ctx context.Context, filename, mimeType string, data io.Reader) (*JobStatus, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var out JobStatus
	if err := c.do(ctx, http.MethodPost, "/v1/callsheets", body, mw.FormDataContentType(), "upload call sheet", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FuelFactor(ctx context.Context, fuelType string) (*domain.FuelFactor, error) {
	var out domain.FuelFactor
	path := "/v1/fuel-factor?" + url.Values{"fuelType": {fuelType}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, "", "fuel factor", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GridIntensity(ctx context.Context, country string) (*domain.GridIntensity, error) {
	var out domain.GridIntensity
	path := "/v1/grid-intensity?" + url.Values{"country": {country}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, "", "grid intensity", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Quota(ctx context.Context) (*domain.QuotaStatus, error) {
	var out domain.QuotaStatus
	if err := c.do(ctx, http.MethodGet, "/v1/quota", nil, "", "quota", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType, operation string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	err = resilience.DoJSON(c.httpClient, req, serviceName, operation, out)
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		return toAPIError(statusErr)
	}
	return err
}

func toAPIError(statusErr *resilience.HTTPStatusError) *APIError {
	apiErr := &APIError{StatusCode: statusErr.StatusCode, Message: statusErr.Status}
	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if json.Unmarshal([]byte(statusErr.Body), &body) == nil {
		apiErr.Kind = body.Kind
		if body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
