package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

// JobRepository stores extraction jobs and their write-once results.
// Status changes are conditional updates so concurrent workers cannot
// both claim a job.
type JobRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const jobColumns = `id, user_id, status, storage_path, filename, mime_type, size_bytes, confidence, error_message, created_at, updated_at`

func (r *JobRepository) Create(ctx context.Context, job *domain.ExtractionJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_jobs (`+jobColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		job.ID, job.UserID, string(job.Status), job.StoragePath, job.Filename, job.MimeType, job.SizeBytes,
		job.Confidence, job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert job", err)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.ExtractionJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM extraction_jobs WHERE id = $1`, jobID)
	return scanJob(row, jobID)
}

// GetForUser hides jobs owned by someone else behind the same not-found error.
func (r *JobRepository) GetForUser(ctx context.Context, userID, jobID string) (*domain.ExtractionJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM extraction_jobs WHERE id = $1 AND user_id = $2`, jobID, userID)
	return scanJob(row, jobID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner, jobID string) (*domain.ExtractionJob, error) {
	var (
		job        domain.ExtractionJob
		status     string
		confidence sql.NullFloat64
	)
	err := row.Scan(
		&job.ID, &job.UserID, &status, &job.StoragePath, &job.Filename, &job.MimeType, &job.SizeBytes,
		&confidence, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get job", jobID)
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	parsed, err := domain.ParseJobStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = parsed
	job.Confidence = nullableFloat(confidence)
	return &job, nil
}

func (r *JobRepository) Transition(ctx context.Context, jobID string, from, to domain.JobStatus, errMessage string) error {
	if !domain.CanTransition(from, to) {
		return domain.WrapError(domain.ErrConflict, "transition job", fmt.Errorf("%s -> %s is not allowed", from, to))
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $3, error_message = $4, updated_at = $5
WHERE id = $1 AND status = $2
`, jobID, string(from), string(to), errMessage, r.now())
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition job rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConflict, "transition job", fmt.Errorf("job %s is not %s", jobID, from))
	}
	return nil
}

// Complete stores the result and moves processing → done in one transaction.
func (r *JobRepository) Complete(ctx context.Context, jobID string, extraction domain.CallSheetExtraction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := r.now()
	res, err := tx.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $2, confidence = $3, error_message = '', updated_at = $4
WHERE id = $1 AND status = $5
`, jobID, string(domain.JobDone), extraction.Result.Confidence, now, string(domain.JobProcessing))
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete job rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConflict, "complete job", fmt.Errorf("job %s is not processing", jobID))
	}

	result := extraction.Result
	if _, err := tx.ExecContext(ctx, `
INSERT INTO callsheet_results (job_id, project_name, production_company, shoot_date, call_time, confidence, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, jobID, result.ProjectName, result.ProductionCompany, result.Date, result.CallTime, result.Confidence, now); err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert callsheet result", err)
		}
		return fmt.Errorf("insert callsheet result: %w", err)
	}

	for _, loc := range extraction.Locations {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO callsheet_locations (job_id, position, raw_text, label)
VALUES ($1,$2,$3,$4)
`, jobID, loc.Position, loc.RawText, loc.Label); err != nil {
			return fmt.Errorf("insert callsheet location: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete tx: %w", err)
	}
	return nil
}

func (r *JobRepository) GetResult(ctx context.Context, jobID string) (*domain.CallSheetExtraction, error) {
	var (
		out        domain.CallSheetExtraction
		confidence sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT job_id, project_name, production_company, shoot_date, call_time, confidence, created_at
FROM callsheet_results
WHERE job_id = $1
`, jobID).Scan(
		&out.Result.JobID, &out.Result.ProjectName, &out.Result.ProductionCompany, &out.Result.Date,
		&out.Result.CallTime, &confidence, &out.Result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get callsheet result", jobID)
		}
		return nil, fmt.Errorf("scan callsheet result: %w", err)
	}
	out.Result.Confidence = nullableFloat(confidence)

	rows, err := r.db.QueryContext(ctx, `
SELECT position, raw_text, label
FROM callsheet_locations
WHERE job_id = $1
ORDER BY position
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query callsheet locations: %w", err)
	}
	defer rows.Close()

	out.Locations = []domain.ExtractedLocation{}
	for rows.Next() {
		loc := domain.ExtractedLocation{JobID: jobID}
		if err := rows.Scan(&loc.Position, &loc.RawText, &loc.Label); err != nil {
			return nil, fmt.Errorf("scan callsheet location: %w", err)
		}
		out.Locations = append(out.Locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate callsheet locations: %w", err)
	}
	return &out, nil
}

// staleBatch bounds one reaper sweep.
const staleBatch = 100

func (r *JobRepository) ListStale(ctx context.Context, status domain.JobStatus, olderThan time.Time) ([]domain.ExtractionJob, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM extraction_jobs
WHERE status = $1 AND updated_at < $2
ORDER BY updated_at
LIMIT $3
`, string(status), olderThan, staleBatch)
	if err != nil {
		return nil, fmt.Errorf("query stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ExtractionJob
	for rows.Next() {
		job, err := scanJob(rows, "")
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale jobs: %w", err)
	}
	return jobs, nil
}
