package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

// JobQueryUseCase is the polling read model. Jobs of other users are
// reported as not found.
type JobQueryUseCase struct {
	repo          ports.JobRepository
	minConfidence float64
}

func NewJobQueryUseCase(repo ports.JobRepository, minConfidence float64) *JobQueryUseCase {
	return &JobQueryUseCase{repo: repo, minConfidence: minConfidence}
}

func (uc *JobQueryUseCase) GetJob(ctx context.Context, userID, jobID string) (*domain.ExtractionJob, error) {
	job, err := uc.repo.GetForUser(ctx, userID, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	job.Status = job.PublicStatus(uc.minConfidence)
	return job, nil
}

func (uc *JobQueryUseCase) GetResult(ctx context.Context, userID, jobID string) (*domain.CallSheetExtraction, error) {
	job, err := uc.repo.GetForUser(ctx, userID, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if err := requireDone(job); err != nil {
		return nil, err
	}

	result, err := uc.repo.GetResult(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

func requireDone(job *domain.ExtractionJob) error {
	switch job.Status {
	case domain.JobDone:
		return nil
	case domain.JobFailed:
		return domain.WrapError(domain.ErrConflict, "job result", errors.New("job failed: "+job.Error))
	default:
		return domain.WrapError(domain.ErrConflict, "job result", fmt.Errorf("job is %s", job.Status))
	}
}
