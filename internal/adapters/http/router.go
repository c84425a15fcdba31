package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/liliganster/tp-companion/internal/config"
	"github.com/liliganster/tp-companion/internal/core/ports"
	"github.com/liliganster/tp-companion/internal/observability/metrics"
)

// Services are the inbound ports the router dispatches to. Metrics and MCP
// are optional.
type Services struct {
	Sessions   ports.SessionValidator
	Expenses   ports.ExpenseExtractor
	CallSheets ports.CallSheetIngestor
	Jobs       ports.JobReader
	Reviews    ports.ReviewService
	Factors    ports.FactorService
	Quota      ports.QuotaService
	Limiter    RateLimiter
	Metrics    *metrics.HTTPServerMetrics
	MCP        http.Handler
}

type rateObserver interface {
	RateLimited(limit string)
}

type Router struct {
	cfg config.Config

	sessions   ports.SessionValidator
	expenses   ports.ExpenseExtractor
	callSheets ports.CallSheetIngestor
	jobs       ports.JobReader
	reviews    ports.ReviewService
	factors    ports.FactorService
	quota      ports.QuotaService
	limiter    RateLimiter

	metrics      *metrics.HTTPServerMetrics
	rateObserver rateObserver
	mcp          http.Handler
	validator    *requestValidator
}

// NewRouter panics when the embedded OpenAPI document is invalid.
func NewRouter(cfg config.Config, svc Services) *Router {
	validator, err := newRequestValidator()
	if err != nil {
		panic(err)
	}
	rt := &Router{
		cfg:        cfg,
		sessions:   svc.Sessions,
		expenses:   svc.Expenses,
		callSheets: svc.CallSheets,
		jobs:       svc.Jobs,
		reviews:    svc.Reviews,
		factors:    svc.Factors,
		quota:      svc.Quota,
		limiter:    svc.Limiter,
		metrics:    svc.Metrics,
		mcp:        svc.MCP,
		validator:  validator,
	}
	if svc.Metrics != nil {
		rt.rateObserver = svc.Metrics.Pipeline()
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", rt.healthz)
	r.Get("/openapi.yaml", rt.openAPIDocument)
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler())
	}
	if rt.mcp != nil {
		r.With(rt.authMiddleware).Handle("/mcp", rt.mcp)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware)

		// Per-user windows count every attempt, so they run before the
		// request is validated or read.
		r.With(rt.limited(limitFuelFactor, rt.cfg.FactorRateLimit), rt.validator.middleware).
			Get("/fuel-factor", rt.getFuelFactor)
		r.With(rt.limited(limitGridIntensity, rt.cfg.FactorRateLimit), rt.validator.middleware).
			Get("/grid-intensity", rt.getGridIntensity)
		r.With(rt.limited(limitExpenseExtract, rt.cfg.ExpenseRateLimit), rt.validator.middleware).
			Post("/expenses/extract", rt.extractExpense)
		r.With(rt.limited(limitCallSheetCreate, rt.cfg.CallSheetRateLimit), rt.validator.middleware).
			Post("/callsheets", rt.createCallSheetJob)

		r.Group(func(r chi.Router) {
			r.Use(rt.validator.middleware)
			r.Get("/jobs/{id}", rt.getJob)
			r.Get("/jobs/{id}/result", rt.getJobResult)
			r.Get("/jobs/{id}/review", rt.getJobReview)
			r.Post("/jobs/{id}/confirm", rt.confirmJobReview)
			r.Get("/quota", rt.getQuota)
		})
	})

	var handler http.Handler = r
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIInFlightWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
