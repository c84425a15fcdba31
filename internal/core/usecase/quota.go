package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

// QuotaUseCase counts successful paid AI operations per calendar month (UTC).
//
// Check and Record are separate calls, so two concurrent requests may both
// pass Check at used = limit-1. At most one extra call per race is accepted.
type QuotaUseCase struct {
	usage    ports.UsageRepository
	profiles ports.ProfileRepository
	limits   map[string]int
	now      func() time.Time
}

func NewQuotaUseCase(usage ports.UsageRepository, profiles ports.ProfileRepository, limits map[string]int, now func() time.Time) *QuotaUseCase {
	if now == nil {
		now = time.Now
	}
	return &QuotaUseCase{usage: usage, profiles: profiles, limits: limits, now: now}
}

func (uc *QuotaUseCase) Check(ctx context.Context, userID string) (domain.QuotaStatus, error) {
	plan, err := uc.plan(ctx, userID)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	limit := uc.limits[plan]

	start := domain.MonthStart(uc.now())
	used, err := uc.usage.CountSince(ctx, userID, start)
	if err != nil {
		return domain.QuotaStatus{}, fmt.Errorf("count usage: %w", err)
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaStatus{
		Allowed:   used < limit,
		Plan:      plan,
		Used:      used,
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   start.AddDate(0, 1, 0),
	}, nil
}

func (uc *QuotaUseCase) Record(ctx context.Context, userID, operation string) error {
	if err := uc.usage.Record(ctx, userID, operation, uc.now().UTC()); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (uc *QuotaUseCase) plan(ctx context.Context, userID string) (string, error) {
	profile, err := uc.profiles.GetProfile(ctx, userID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.PlanFree, nil
		}
		return "", fmt.Errorf("load profile: %w", err)
	}
	if _, ok := uc.limits[profile.Plan]; !ok {
		return domain.PlanFree, nil
	}
	return profile.Plan, nil
}

// requireQuota checks quota and turns an exhausted one into ErrQuotaExceeded.
func requireQuota(ctx context.Context, quota ports.QuotaService, observer ports.PipelineObserver, userID, operation string) (domain.QuotaStatus, error) {
	status, err := quota.Check(ctx, userID)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	if !status.Allowed {
		observer.QuotaRejected(operation)
		return status, domain.WrapError(domain.ErrQuotaExceeded, operation, fmt.Errorf("monthly limit of %d reached", status.Limit))
	}
	return status, nil
}
