package ports

import (
	"context"
	"io"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

// Upload is a file received from a client.
type Upload struct {
	Filename string
	MimeType string
	Size     int64
	Body     io.Reader
}

// SessionValidator resolves a bearer credential into an identity.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (domain.Identity, error)
}

// ExpenseExtractor is the inbound contract for synchronous receipt extraction.
type ExpenseExtractor interface {
	Extract(ctx context.Context, who domain.Identity, req domain.ExpenseExtractRequest) (*domain.ExpenseExtraction, error)
}

// CallSheetIngestor creates asynchronous call-sheet extraction jobs.
type CallSheetIngestor interface {
	Create(ctx context.Context, who domain.Identity, upload Upload) (*domain.ExtractionJob, error)
}

// JobReader is the polling read model for extraction jobs.
type JobReader interface {
	GetJob(ctx context.Context, userID, jobID string) (*domain.ExtractionJob, error)
	GetResult(ctx context.Context, userID, jobID string) (*domain.CallSheetExtraction, error)
}

// JobProcessor is the worker-side contract that advances queued jobs.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// ReviewService builds the review state of a finished job and persists the
// confirmed trip.
type ReviewService interface {
	Prepare(ctx context.Context, userID, jobID string) (*domain.Review, error)
	Confirm(ctx context.Context, userID, jobID string, in domain.ReviewConfirmation) (*domain.Trip, error)
}

// FactorService looks up emission data with static fallbacks.
type FactorService interface {
	FuelFactor(ctx context.Context, fuelType string) (domain.FuelFactor, error)
	GridIntensity(ctx context.Context, countryCode string) (domain.GridIntensity, error)
}

// QuotaService bounds paid AI operations per user per calendar month.
type QuotaService interface {
	Check(ctx context.Context, userID string) (domain.QuotaStatus, error)
	Record(ctx context.Context, userID, operation string) error
}
