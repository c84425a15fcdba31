package ports

import (
	"context"
	"io"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

type ObjectInfo struct {
	Key       string
	Size      int64
	MimeType  string
	UpdatedAt time.Time
}

// ObjectStorage stores uploaded artifacts. Missing keys map to domain.ErrNotFound.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// JobRepository persists extraction jobs and their immutable results.
// Transition only succeeds when the stored status equals from.
type JobRepository interface {
	Create(ctx context.Context, job *domain.ExtractionJob) error
	GetByID(ctx context.Context, jobID string) (*domain.ExtractionJob, error)
	GetForUser(ctx context.Context, userID, jobID string) (*domain.ExtractionJob, error)
	Transition(ctx context.Context, jobID string, from, to domain.JobStatus, errMessage string) error
	Complete(ctx context.Context, jobID string, extraction domain.CallSheetExtraction) error
	GetResult(ctx context.Context, jobID string) (*domain.CallSheetExtraction, error)
	ListStale(ctx context.Context, status domain.JobStatus, olderThan time.Time) ([]domain.ExtractionJob, error)
}

// UsageRepository stores successful paid AI operations.
type UsageRepository interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	Record(ctx context.Context, userID, operation string, at time.Time) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
}

type DocumentRepository interface {
	CreateRef(ctx context.Context, ref *domain.DocumentRef) error
}

// TripRepository is the narrow slice of business storage the review flow writes.
type TripRepository interface {
	FindProjectByName(ctx context.Context, userID, name string) (*domain.Project, error)
	CreateProject(ctx context.Context, project *domain.Project) error
	CreateTrip(ctx context.Context, trip *domain.Trip) error
}

// MessageQueue publishes/consumes queued-job events.
type MessageQueue interface {
	PublishJobQueued(ctx context.Context, jobID string) error
	SubscribeJobQueued(ctx context.Context, handler func(context.Context, string) error) error
}

// Artifact is a document handed to the AI service.
type Artifact struct {
	MimeType string
	Data     []byte
	Text     string
}

// DocumentAI calls the AI document-understanding service and returns its raw
// JSON-shaped answer.
type DocumentAI interface {
	ExtractExpense(ctx context.Context, expenseType domain.ExpenseType, artifact Artifact) (string, error)
	ExtractCallSheet(ctx context.Context, artifact Artifact) (string, error)
}

// TextLayerExtractor reads the embedded text of PDFs and spreadsheets.
type TextLayerExtractor interface {
	ExtractText(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Geocoder returns domain.ErrNotFound when the query has no match.
type Geocoder interface {
	Geocode(ctx context.Context, query, region string) (domain.GeocodeResult, error)
}

// RoutePlanner returns the total driving distance in meters of
// origin → waypoints (in order) → destination.
type RoutePlanner interface {
	RouteMeters(ctx context.Context, origin, destination string, waypoints []string) (float64, error)
}

// FactorReading is a raw numeric payload from an emission data service.
type FactorReading struct {
	Value float64
	Unit  string
}

// FuelFactorSource returns domain.ErrConfiguration when it has no credential.
type FuelFactorSource interface {
	FuelFactorPerLiter(ctx context.Context, fuelType domain.FuelType) (FactorReading, error)
}

type GridIntensitySource interface {
	CarbonIntensity(ctx context.Context, countryCode string) (FactorReading, error)
}

// IdentityProvider introspects a bearer credential.
type IdentityProvider interface {
	Introspect(ctx context.Context, token string) (domain.Identity, error)
}

// FactorCache is the process-wide best-effort cache for emission values.
type FactorCache interface {
	Get(key string) (float64, bool)
	Put(key string, value float64, ttl time.Duration)
}

// PipelineObserver receives pipeline events for metrics. Implementations
// must be safe for concurrent use.
type PipelineObserver interface {
	FallbackUsed(component string)
	AICall(operation, outcome string)
	QuotaRejected(operation string)
}

type NoopObserver struct{}

func (NoopObserver) FallbackUsed(string)   {}
func (NoopObserver) AICall(string, string) {}
func (NoopObserver) QuotaRejected(string)  {}
