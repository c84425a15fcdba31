package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/normalize"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

const failureWriteTimeout = 5 * time.Second

// CallSheetProcessUseCase is the single writer for queued → processing →
// done|failed. Redelivered events for jobs that already left queued are
// acknowledged without work.
type CallSheetProcessUseCase struct {
	repo     ports.JobRepository
	storage  ports.ObjectStorage
	text     ports.TextLayerExtractor
	ai       ports.DocumentAI
	quota    ports.QuotaService
	observer ports.PipelineObserver
}

func NewCallSheetProcessUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	text ports.TextLayerExtractor,
	ai ports.DocumentAI,
	quota ports.QuotaService,
	observer ports.PipelineObserver,
) *CallSheetProcessUseCase {
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	return &CallSheetProcessUseCase{
		repo:     repo,
		storage:  storage,
		text:     text,
		ai:       ai,
		quota:    quota,
		observer: observer,
	}
}

func (uc *CallSheetProcessUseCase) ProcessByID(ctx context.Context, jobID string) error {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			slog.Warn("job_missing", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("fetch job by id: %w", err)
	}
	if job.Status != domain.JobQueued {
		slog.Info("job_skipped", "job_id", jobID, "status", job.Status)
		return nil
	}

	if err := uc.repo.Transition(ctx, jobID, domain.JobQueued, domain.JobProcessing, ""); err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			slog.Info("job_claimed_elsewhere", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("set status=processing: %w", err)
	}

	extraction, err := uc.processPipeline(ctx, job)
	if err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.Complete(ctx, jobID, extraction); err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save result: %w", err)
	}

	slog.Info("job_done", "job_id", jobID, "locations", len(extraction.Locations))
	return nil
}

func (uc *CallSheetProcessUseCase) processPipeline(ctx context.Context, job *domain.ExtractionJob) (domain.CallSheetExtraction, error) {
	artifact, err := loadArtifact(ctx, uc.storage, uc.text, job.StoragePath, job.MimeType)
	if err != nil {
		return domain.CallSheetExtraction{}, err
	}

	raw, err := uc.ai.ExtractCallSheet(ctx, artifact)
	if err != nil {
		uc.observer.AICall(domain.OperationCallSheetExtract, "error")
		return domain.CallSheetExtraction{}, fmt.Errorf("extract call sheet: %w", err)
	}
	uc.observer.AICall(domain.OperationCallSheetExtract, "ok")
	if err := uc.quota.Record(ctx, job.UserID, domain.OperationCallSheetExtract); err != nil {
		slog.Error("quota_record_failed", "user_id", job.UserID, "operation", domain.OperationCallSheetExtract, "error", err)
	}

	extraction, err := normalize.CallSheet(job.ID, raw)
	if err != nil {
		return domain.CallSheetExtraction{}, fmt.Errorf("normalize call sheet: %w", err)
	}
	return extraction, nil
}

// markFailed outlives the handler context so a timed out or shut down job
// still reaches failed instead of waiting for the reaper.
func (uc *CallSheetProcessUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	slog.Warn("job_failed", "job_id", jobID, "error", processErr)
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	return uc.repo.Transition(writeCtx, jobID, domain.JobProcessing, domain.JobFailed, FailureMessage(processErr))
}

// FailureMessage is the client-visible reason stored on a failed job. It
// never carries upstream bodies or internal identifiers.
func FailureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "extraction timed out"
	case domain.IsKind(err, domain.ErrParse):
		return "the call sheet could not be read"
	case domain.IsKind(err, domain.ErrTooLarge):
		return "the file is too large"
	case domain.IsKind(err, domain.ErrNotFound):
		return "the uploaded file is missing"
	case domain.IsKind(err, domain.ErrConfiguration):
		return "extraction is not configured"
	case domain.IsKind(err, domain.ErrUpstream), domain.IsKind(err, domain.ErrTemporary):
		return "the extraction service is unavailable"
	default:
		return "extraction failed"
	}
}
