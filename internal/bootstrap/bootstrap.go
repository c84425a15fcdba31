package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liliganster/tp-companion/internal/config"
	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
	"github.com/liliganster/tp-companion/internal/core/usecase"
	"github.com/liliganster/tp-companion/internal/infrastructure/cache"
	"github.com/liliganster/tp-companion/internal/infrastructure/extractor/textlayer"
	"github.com/liliganster/tp-companion/internal/infrastructure/factors"
	"github.com/liliganster/tp-companion/internal/infrastructure/identity"
	"github.com/liliganster/tp-companion/internal/infrastructure/llm/gemini"
	"github.com/liliganster/tp-companion/internal/infrastructure/maps/google"
	"github.com/liliganster/tp-companion/internal/infrastructure/queue/nats"
	"github.com/liliganster/tp-companion/internal/infrastructure/ratelimit"
	"github.com/liliganster/tp-companion/internal/infrastructure/repository/postgres"
	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
	"github.com/liliganster/tp-companion/internal/infrastructure/storage/localfs"
	"github.com/liliganster/tp-companion/internal/infrastructure/storage/s3"
	"github.com/liliganster/tp-companion/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Sessions ports.SessionValidator
	Limiter  *ratelimit.Limiter

	Expenses   ports.ExpenseExtractor
	CallSheets ports.CallSheetIngestor
	Processor  ports.JobProcessor
	Jobs       ports.JobReader
	Reviews    ports.ReviewService
	Factors    ports.FactorService
	Quota      ports.QuotaService
	Reaper     *usecase.StaleJobReaper

	closers []func()
}

// Options carries the process-specific observers. Both are optional.
type Options struct {
	Pipeline *metrics.PipelineMetrics
	OnLag    func(time.Duration)
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var observer ports.PipelineObserver = ports.NoopObserver{}
	if opts.Pipeline != nil {
		observer = opts.Pipeline
	}
	newExecutor := func(policy resilience.Config) *resilience.Executor {
		exec := resilience.NewExecutor(policy)
		if opts.Pipeline != nil {
			exec.WithObserver(opts.Pipeline)
		}
		return exec
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: newExecutor(resilience.DefaultConfig()),
		OnLag:              opts.OnLag,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closers = append(app.closers, queue.Close)

	limiter, err := newLimiter(ctx, cfg, app)
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}
	app.Limiter = limiter

	catalog, err := factors.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load factor catalog: %w", err)
	}

	app.Sessions = identity.NewValidator(
		identity.NewClient(cfg.IdentityURL, cfg.IdentityServiceKey, cfg.IdentityTimeout),
		identity.Options{MaxTTL: cfg.IdentityCacheMaxTTL},
	)

	ai := gemini.New(cfg.GeminiURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, newExecutor(resilience.DocumentAIConfig()))
	mapsClient := google.New(cfg.GoogleMapsURL, cfg.GoogleMapsAPIKey, cfg.MapsTimeout, newExecutor(resilience.DefaultConfig()))
	text := textlayer.NewExtractor()

	app.wireUseCases(db, cfg, storage, queue, ai, mapsClient, text, catalog, newExecutor, observer)
	return app, nil
}

func (a *App) wireUseCases(
	db *sql.DB,
	cfg config.Config,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	ai ports.DocumentAI,
	mapsClient *google.Client,
	text ports.TextLayerExtractor,
	catalog factors.Catalog,
	newExecutor func(resilience.Config) *resilience.Executor,
	observer ports.PipelineObserver,
) {
	jobs := postgres.NewJobRepository(db)
	profiles := postgres.NewProfileRepository(db)

	quota := usecase.NewQuotaUseCase(postgres.NewUsageRepository(db), profiles, map[string]int{
		domain.PlanFree: cfg.QuotaFreeLimit,
		domain.PlanPro:  cfg.QuotaProLimit,
	}, time.Now)
	resolver := usecase.NewLocationResolver(google.NewGeocoder(mapsClient), google.NewDirections(mapsClient), cfg.GeocodeBatchLimit, observer)

	a.Quota = quota
	a.Expenses = usecase.NewExpenseExtractionUseCase(storage, text, ai, quota, postgres.NewDocumentRepository(db), observer)
	a.CallSheets = usecase.NewCallSheetIngestUseCase(jobs, storage, queue, quota, observer)
	a.Processor = usecase.NewCallSheetProcessUseCase(jobs, storage, text, ai, quota, observer)
	a.Jobs = usecase.NewJobQueryUseCase(jobs, cfg.ReviewMinConfidence)
	a.Reviews = usecase.NewReviewUseCase(jobs, profiles, postgres.NewTripRepository(db), resolver, cfg.ReviewMinConfidence)
	a.Factors = usecase.NewFactorUseCase(
		factors.NewClimatiqClient(cfg.ClimatiqURL, cfg.ClimatiqAPIKey, cfg.ClimatiqDataVersion, catalog.ActivityIDs, cfg.FactorTimeout, newExecutor(resilience.DefaultConfig())),
		factors.NewGridClient(cfg.ElectricityMapsURL, cfg.ElectricityMapsAPIKey, cfg.FactorTimeout, newExecutor(resilience.DefaultConfig())),
		catalog.Defaults,
		cache.NewTTLCache[float64](cfg.FactorCacheCap, time.Now),
		cfg.ClimatiqDataVersion,
		observer,
	)
	a.Reaper = usecase.NewStaleJobReaper(jobs, queue, cfg.WorkerStuckAfter)
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	if cfg.StorageBackend == "s3" {
		return s3.New(ctx, s3.Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
	}
	return localfs.New(cfg.StoragePath)
}

func newLimiter(ctx context.Context, cfg config.Config, app *App) (*ratelimit.Limiter, error) {
	if cfg.RateLimitBackend != "redis" {
		return ratelimit.NewLimiter(ratelimit.NewMemoryStore(time.Now), time.Now), nil
	}
	rdb, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() { _ = rdb.Close() })
	return ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb, time.Now), time.Now), nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
