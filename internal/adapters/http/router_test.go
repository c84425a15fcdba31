package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liliganster/tp-companion/internal/config"
	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
	"github.com/liliganster/tp-companion/internal/infrastructure/ratelimit"
)

const testToken = "session-token"

type fakeSessions struct {
	err error
}

func (f *fakeSessions) Validate(_ context.Context, token string) (domain.Identity, error) {
	if f.err != nil {
		return domain.Identity{}, f.err
	}
	if token != testToken {
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "validate", errors.New("unknown token"))
	}
	return domain.Identity{ID: "user-1", Email: "crew@example.com"}, nil
}

type fakeExpenses struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeExpenses) Extract(_ context.Context, _ domain.Identity, req domain.ExpenseExtractRequest) (*domain.ExpenseExtraction, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	amount := 42.5
	return &domain.ExpenseExtraction{ExpenseType: req.ExpenseType, Amount: &amount, Currency: "EUR"}, nil
}

type fakeCallSheets struct {
	calls    int
	upload   ports.Upload
	received int
}

func (f *fakeCallSheets) Create(_ context.Context, _ domain.Identity, upload ports.Upload) (*domain.ExtractionJob, error) {
	f.calls++
	f.upload = upload
	data, _ := io.ReadAll(upload.Body)
	f.received = len(data)
	return &domain.ExtractionJob{ID: "job-1", Status: domain.JobQueued, Filename: upload.Filename, MimeType: upload.MimeType}, nil
}

type fakeJobs struct {
	job    *domain.ExtractionJob
	result *domain.CallSheetExtraction
	err    error
}

func (f *fakeJobs) GetJob(_ context.Context, _, _ string) (*domain.ExtractionJob, error) {
	return f.job, f.err
}

func (f *fakeJobs) GetResult(_ context.Context, _, _ string) (*domain.CallSheetExtraction, error) {
	return f.result, f.err
}

type fakeReviews struct {
	confirmed domain.ReviewConfirmation
}

func (f *fakeReviews) Prepare(_ context.Context, _, jobID string) (*domain.Review, error) {
	return &domain.Review{Job: domain.ExtractionJob{ID: jobID}, Status: domain.JobDone}, nil
}

func (f *fakeReviews) Confirm(_ context.Context, userID, jobID string, in domain.ReviewConfirmation) (*domain.Trip, error) {
	f.confirmed = in
	return &domain.Trip{ID: "trip-1", UserID: userID, JobID: jobID, Route: in.Locations}, nil
}

type fakeFactors struct {
	calls int
}

func (f *fakeFactors) FuelFactor(_ context.Context, fuelType string) (domain.FuelFactor, error) {
	f.calls++
	return domain.FuelFactor{FuelType: domain.FuelType(fuelType), KgCO2ePerLiter: 2.68, Source: "climatiq"}, nil
}

func (f *fakeFactors) GridIntensity(_ context.Context, country string) (domain.GridIntensity, error) {
	f.calls++
	return domain.GridIntensity{CountryCode: strings.ToUpper(country), GramsCO2ePerKWh: 350, Source: "electricitymaps"}, nil
}

type fakeQuota struct{}

func (fakeQuota) Check(context.Context, string) (domain.QuotaStatus, error) {
	return domain.QuotaStatus{Allowed: true, Plan: "free", Used: 1, Remaining: 4, Limit: 5}, nil
}

func (fakeQuota) Record(context.Context, string, string) error { return nil }

type fakeServices struct {
	sessions   *fakeSessions
	expenses   *fakeExpenses
	callSheets *fakeCallSheets
	jobs       *fakeJobs
	reviews    *fakeReviews
	factors    *fakeFactors
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		sessions:   &fakeSessions{},
		expenses:   &fakeExpenses{},
		callSheets: &fakeCallSheets{},
		jobs:       &fakeJobs{},
		reviews:    &fakeReviews{},
		factors:    &fakeFactors{},
	}
}

func newTestHandler(cfg config.Config, f *fakeServices) http.Handler {
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.ExpenseRateLimit == 0 {
		cfg.ExpenseRateLimit = 10
	}
	if cfg.CallSheetRateLimit == 0 {
		cfg.CallSheetRateLimit = 10
	}
	if cfg.FactorRateLimit == 0 {
		cfg.FactorRateLimit = 60
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(time.Now), time.Now)
	return NewRouter(cfg, Services{
		Sessions:   f.sessions,
		Expenses:   f.expenses,
		CallSheets: f.callSheets,
		Jobs:       f.jobs,
		Reviews:    f.reviews,
		Factors:    f.factors,
		Quota:      fakeQuota{},
		Limiter:    limiter,
	}).Handler()
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, res.Body.String())
	}
	return body
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return body, mw.FormDataContentType()
}

func TestHealthzNeedsNoCredential(t *testing.T) {
	handler := newTestHandler(config.Config{}, newFakeServices())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestV1RoutesRequireBearerCredential(t *testing.T) {
	f := newFakeServices()
	handler := newTestHandler(config.Config{}, f)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/fuel-factor?fuelType=diesel", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if body := decodeError(t, res); body.Kind != "authentication" {
		t.Fatalf("unexpected kind %q", body.Kind)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/fuel-factor?fuelType=diesel", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", res.Code)
	}
	if f.factors.calls != 0 {
		t.Fatalf("factor service must not be called without identity")
	}
}

func TestIdentityOutageIsReportedAsUnauthorized(t *testing.T) {
	f := newFakeServices()
	f.sessions.err = domain.WrapError(domain.ErrUnauthorized, "introspect",
		domain.WrapError(domain.ErrUpstream, "identity", errors.New("connection refused")))
	handler := newTestHandler(config.Config{}, f)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authed(httptest.NewRequest(http.MethodGet, "/v1/quota", nil)))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "connection refused") {
		t.Fatalf("internal cause leaked: %s", res.Body.String())
	}
}

func TestFuelFactorReturnsFactor(t *testing.T) {
	handler := newTestHandler(config.Config{}, newFakeServices())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authed(httptest.NewRequest(http.MethodGet, "/v1/fuel-factor?fuelType=diesel", nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var factor domain.FuelFactor
	if err := json.Unmarshal(res.Body.Bytes(), &factor); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if factor.FuelType != "diesel" || factor.KgCO2ePerLiter != 2.68 {
		t.Fatalf("unexpected factor %+v", factor)
	}
	if res.Header().Get("X-RateLimit-Limit") != "60" {
		t.Fatalf("expected rate limit header, got %q", res.Header().Get("X-RateLimit-Limit"))
	}
}

func TestGridIntensityRejectsMalformedCountry(t *testing.T) {
	f := newFakeServices()
	handler := newTestHandler(config.Config{}, f)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authed(httptest.NewRequest(http.MethodGet, "/v1/grid-intensity?country=DEU", nil)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if f.factors.calls != 0 {
		t.Fatalf("invalid request reached the service")
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, authed(httptest.NewRequest(http.MethodGet, "/v1/grid-intensity?country=de", nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
}

func TestExpenseExtractRejectsUnknownExpenseType(t *testing.T) {
	f := newFakeServices()
	handler := newTestHandler(config.Config{}, f)

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/expenses/extract",
		strings.NewReader(`{"storagePath":"user-1/receipt.jpg","expenseType":"bribe"}`)))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if f.expenses.calls != 0 {
		t.Fatalf("invalid request reached the use case")
	}
}

func TestExpenseExtractEleventhCallIsRateLimited(t *testing.T) {
	f := newFakeServices()
	handler := newTestHandler(config.Config{ExpenseRateLimit: 10}, f)

	send := func() *httptest.ResponseRecorder {
		req := authed(httptest.NewRequest(http.MethodPost, "/v1/expenses/extract",
			strings.NewReader(`{"storagePath":"user-1/receipt.jpg","expenseType":"fuel"}`)))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res
	}

	for i := 0; i < 10; i++ {
		if res := send(); res.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d: %s", i+1, res.Code, res.Body.String())
		}
	}
	res := send()
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if body := decodeError(t, res); body.Kind != "rate_limited" {
		t.Fatalf("unexpected kind %q", body.Kind)
	}
	if f.expenses.calls != 10 {
		t.Fatalf("expected 10 use case calls, got %d", f.expenses.calls)
	}
}

func TestInvalidBodiesCountAgainstWindow(t *testing.T) {
	f := newFakeServices()
	handler := newTestHandler(config.Config{ExpenseRateLimit: 10}, f)

	send := func(body string) *httptest.ResponseRecorder {
		req := authed(httptest.NewRequest(http.MethodPost, "/v1/expenses/extract", strings.NewReader(body)))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res
	}

	for i := 0; i < 10; i++ {
		if res := send(`{"storagePath":`); res.Code != http.StatusBadRequest {
			t.Fatalf("call %d: expected 400, got %d: %s", i+1, res.Code, res.Body.String())
		}
	}
	res := send(`{"storagePath":"user-1/receipt.jpg","expenseType":"fuel"}`)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after ten rejected bodies, got %d", res.Code)
	}
	if f.expenses.calls != 0 {
		t.Fatalf("expected no use case calls, got %d", f.expenses.calls)
	}
}

func TestExpenseExtractMapsQuotaAndUpstreamErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"quota", domain.WrapError(domain.ErrQuotaExceeded, "extract", errors.New("5 of 5 used")), http.StatusTooManyRequests},
		{"upstream", domain.WrapError(domain.ErrUpstream, "gemini", errors.New("503")), http.StatusBadGateway},
		{"not found", domain.WrapError(domain.ErrNotFound, "storage", errors.New("missing")), http.StatusNotFound},
		{"parse", domain.WrapError(domain.ErrParse, "decode", errors.New("no json")), http.StatusUnprocessableEntity},
		{"config", domain.WrapError(domain.ErrConfiguration, "gemini", errors.New("GEMINI_API_KEY unset")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeServices()
			f.expenses.err = tc.err
			handler := newTestHandler(config.Config{}, f)

			req := authed(httptest.NewRequest(http.MethodPost, "/v1/expenses/extract",
				strings.NewReader(`{"storagePath":"user-1/receipt.jpg","expenseType":"toll"}`)))
			req.Header.Set("Content-Type", "application/json")
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
			if strings.Contains(res.Body.String(), "GEMINI_API_KEY") {
				t.Fatalf("configuration detail leaked: %s", res.Body.String())
			}
		})
	}
}

func TestCallSheetUploadAccepted(t *testing.T) {
	f := newFakeServices()
	handler := newTestHandler(config.Config{}, f)

	body, contentType := multipartUpload(t, "day1.pdf", "application/octet-stream", []byte("%PDF-1.7 call sheet"))
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/callsheets", body))
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if res.Header().Get("Location") != "/v1/jobs/job-1" {
		t.Fatalf("unexpected location %q", res.Header().Get("Location"))
	}
	if f.callSheets.upload.MimeType != domain.MimePDF {
		t.Fatalf("expected mime from extension, got %q", f.callSheets.upload.MimeType)
	}
	if f.callSheets.received != len("%PDF-1.7 call sheet") {
		t.Fatalf("unexpected body length %d", f.callSheets.received)
	}
}

func TestCallSheetUploadOverLimitIs413(t *testing.T) {
	f := newFakeServices()
	handler := newTestHandler(config.Config{}, f)

	body, contentType := multipartUpload(t, "huge.pdf", domain.MimePDF, bytes.Repeat([]byte("a"), 15<<20))
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/callsheets", body))
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
	if f.callSheets.calls != 0 {
		t.Fatalf("oversized upload reached the use case")
	}
}

func TestCallSheetUploadWithoutFileIs400(t *testing.T) {
	handler := newTestHandler(config.Config{}, newFakeServices())

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	_ = mw.WriteField("note", "no file")
	_ = mw.Close()
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/callsheets", body))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetJobReturnsStatus(t *testing.T) {
	f := newFakeServices()
	f.jobs.job = &domain.ExtractionJob{ID: "job-1", Status: domain.JobNeedsReview, StoragePath: "user-1/x.pdf"}
	handler := newTestHandler(config.Config{}, f)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authed(httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "needs_review" {
		t.Fatalf("unexpected status %v", out["status"])
	}
	if _, ok := out["storagePath"]; ok {
		t.Fatalf("storage path must not be exposed")
	}
}

func TestGetJobResultConflictWhileProcessing(t *testing.T) {
	f := newFakeServices()
	f.jobs.err = domain.WrapError(domain.ErrConflict, "get result", errors.New("job is processing"))
	handler := newTestHandler(config.Config{}, f)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authed(httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1/result", nil)))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestConfirmReviewCreatesTrip(t *testing.T) {
	f := newFakeServices()
	handler := newTestHandler(config.Config{}, f)

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/confirm",
		strings.NewReader(`{"projectName":"Tatort","date":"2024-03-04","locations":["Studio Berlin","Marienplatz 1, München"]}`)))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if f.reviews.confirmed.ProjectName != "Tatort" || len(f.reviews.confirmed.Locations) != 2 {
		t.Fatalf("unexpected confirmation %+v", f.reviews.confirmed)
	}
}

func TestConfirmReviewRequiresLocations(t *testing.T) {
	handler := newTestHandler(config.Config{}, newFakeServices())

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/confirm",
		strings.NewReader(`{"projectName":"Tatort","date":"2024-03-04","locations":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestOpenAPIDocumentServed(t *testing.T) {
	handler := newTestHandler(config.Config{}, newFakeServices())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Body.String(), "openapi: 3.0.3") {
		t.Fatalf("unexpected document")
	}
}

func TestUploadMimeType(t *testing.T) {
	cases := map[string][2]string{
		"header wins":   {"image/png", "scan.jpg"},
		"octet by ext":  {"application/octet-stream", "scan.jpg"},
		"empty by ext":  {"", "sheet.xlsx"},
		"unknown stays": {"", "notes"},
	}
	want := map[string]string{
		"header wins":   domain.MimePNG,
		"octet by ext":  domain.MimeJPEG,
		"empty by ext":  domain.MimeXLSX,
		"unknown stays": "",
	}
	for name, in := range cases {
		if got := uploadMimeType(in[0], in[1]); got != want[name] {
			t.Fatalf("%s: got %q, want %q", name, got, want[name])
		}
	}
}
