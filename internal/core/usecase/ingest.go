package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

// CallSheetIngestUseCase accepts a call sheet and hands it to the worker.
// It owns the created → queued step; everything after belongs to the worker.
type CallSheetIngestUseCase struct {
	repo     ports.JobRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	quota    ports.QuotaService
	observer ports.PipelineObserver
	now      func() time.Time
}

func NewCallSheetIngestUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	quota ports.QuotaService,
	observer ports.PipelineObserver,
) *CallSheetIngestUseCase {
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	return &CallSheetIngestUseCase{
		repo:     repo,
		storage:  storage,
		queue:    queue,
		quota:    quota,
		observer: observer,
		now:      time.Now,
	}
}

func (uc *CallSheetIngestUseCase) Create(ctx context.Context, who domain.Identity, upload ports.Upload) (*domain.ExtractionJob, error) {
	mimeType := domain.NormalizeMimeType(upload.MimeType)
	if err := domain.ValidateArtifact(upload.Size, mimeType); err != nil {
		return nil, err
	}
	if _, err := requireQuota(ctx, uc.quota, uc.observer, who.ID, domain.OperationCallSheetExtract); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := uc.now().UTC()
	job := &domain.ExtractionJob{
		ID:          id,
		UserID:      who.ID,
		Status:      domain.JobCreated,
		StoragePath: fmt.Sprintf("%s/callsheets/%s_%s", who.ID, id, sanitizeFilename(upload.Filename)),
		Filename:    upload.Filename,
		MimeType:    mimeType,
		SizeBytes:   upload.Size,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	body := io.LimitReader(upload.Body, domain.MaxArtifactBytes)
	if err := uc.storage.Save(ctx, job.StoragePath, body); err != nil {
		// The row stays created; the worker's reaper fails it.
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	if err := uc.repo.Transition(ctx, job.ID, domain.JobCreated, domain.JobQueued, ""); err != nil {
		return nil, fmt.Errorf("set status=queued: %w", err)
	}
	job.Status = domain.JobQueued

	if err := uc.queue.PublishJobQueued(ctx, job.ID); err != nil {
		// The row stays queued and is republished by the reaper.
		return nil, fmt.Errorf("publish queued event: %w", err)
	}

	slog.Info("callsheet_job_queued", "job_id", job.ID, "user_id", who.ID, "size_bytes", job.SizeBytes, "mime_type", mimeType)
	return job, nil
}
