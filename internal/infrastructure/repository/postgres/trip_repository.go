package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

type TripRepository struct {
	db *sql.DB
}

func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

func (r *TripRepository) FindProjectByName(ctx context.Context, userID, name string) (*domain.Project, error) {
	var project domain.Project
	err := r.db.QueryRowContext(ctx, `
SELECT id, user_id, name, created_at
FROM projects
WHERE user_id = $1 AND lower(name) = lower($2)
LIMIT 1
`, userID, name).Scan(&project.ID, &project.UserID, &project.Name, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("find project", name)
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &project, nil
}

func (r *TripRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO projects (id, user_id, name, created_at) VALUES ($1,$2,$3,$4)
`, project.ID, project.UserID, project.Name, project.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert project", err)
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *TripRepository) CreateTrip(ctx context.Context, trip *domain.Trip) error {
	route := trip.Route
	if route == nil {
		route = []string{}
	}
	routeJSON, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("marshal route: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO trips (id, user_id, project_id, job_id, trip_date, purpose, route, distance_km, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		trip.ID, trip.UserID, trip.ProjectID, nullString(trip.JobID), trip.Date, trip.Purpose, routeJSON,
		trip.DistanceKm, trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	return nil
}
