package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM ai_usage_events WHERE user_id = $1 AND created_at >= $2
`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}

func (r *UsageRepository) Record(ctx context.Context, userID, operation string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ai_usage_events (user_id, operation, created_at) VALUES ($1, $2, $3)
`, userID, operation, at)
	if err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}
