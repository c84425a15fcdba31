package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	profile := domain.UserProfile{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(city, ''), COALESCE(country, ''), COALESCE(country_code, ''), COALESCE(base_address, ''), plan
FROM user_profiles
WHERE user_id = $1
`, userID).Scan(&profile.City, &profile.Country, &profile.CountryCode, &profile.BaseAddress, &profile.Plan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserProfile{}, notFound("get profile", userID)
		}
		return domain.UserProfile{}, fmt.Errorf("scan profile: %w", err)
	}
	return profile, nil
}
