package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/normalize"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

// ReviewUseCase prepares the editable review of a finished call sheet and
// turns the confirmed review into a trip.
type ReviewUseCase struct {
	jobs          ports.JobRepository
	profiles      ports.ProfileRepository
	trips         ports.TripRepository
	resolver      *LocationResolver
	minConfidence float64
	now           func() time.Time
}

func NewReviewUseCase(
	jobs ports.JobRepository,
	profiles ports.ProfileRepository,
	trips ports.TripRepository,
	resolver *LocationResolver,
	minConfidence float64,
) *ReviewUseCase {
	return &ReviewUseCase{
		jobs:          jobs,
		profiles:      profiles,
		trips:         trips,
		resolver:      resolver,
		minConfidence: minConfidence,
		now:           time.Now,
	}
}

func (uc *ReviewUseCase) Prepare(ctx context.Context, userID, jobID string) (*domain.Review, error) {
	job, extraction, err := uc.finishedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	profile, err := uc.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	locations := append([]domain.ExtractedLocation(nil), extraction.Locations...)
	sort.SliceStable(locations, func(i, j int) bool { return locations[i].Position < locations[j].Position })
	raws := make([]string, len(locations))
	for i, loc := range locations {
		raws[i] = loc.RawText
	}

	candidates := uc.resolver.Resolve(ctx, profile, raws)
	distance := uc.resolver.Distance(ctx, profile, candidates, nil)

	return &domain.Review{
		Job:         *job,
		Status:      job.PublicStatus(uc.minConfidence),
		Result:      extraction.Result,
		Locations:   candidates,
		Distance:    distance,
		BaseAddress: profile.BaseAddress,
	}, nil
}

func (uc *ReviewUseCase) Confirm(ctx context.Context, userID, jobID string, in domain.ReviewConfirmation) (*domain.Trip, error) {
	name := strings.TrimSpace(in.ProjectName)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm review", errors.New("projectName is required"))
	}
	date := normalize.Date(in.Date)
	if date == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm review", errors.New("date is required"))
	}
	route := make([]string, 0, len(in.Locations))
	for _, loc := range in.Locations {
		if loc = strings.TrimSpace(loc); loc != "" {
			route = append(route, loc)
		}
	}
	if len(route) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm review", errors.New("at least one location is required"))
	}
	if in.DistanceKm != nil && *in.DistanceKm < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm review", errors.New("distanceKm must not be negative"))
	}

	if _, _, err := uc.finishedJob(ctx, userID, jobID); err != nil {
		return nil, err
	}

	project, err := uc.findOrCreateProject(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	distance := in.DistanceKm
	if distance == nil {
		profile, err := uc.profile(ctx, userID)
		if err != nil {
			return nil, err
		}
		candidates := make([]domain.LocationCandidate, len(route))
		for i, loc := range route {
			candidates[i] = domain.LocationCandidate{RawText: loc, FormattedAddress: loc}
		}
		distance = uc.resolver.Distance(ctx, profile, candidates, nil).DistanceKm
	}

	trip := &domain.Trip{
		ID:         uuid.NewString(),
		UserID:     userID,
		ProjectID:  project.ID,
		JobID:      jobID,
		Date:       date,
		Purpose:    strings.TrimSpace(in.Purpose),
		Route:      route,
		DistanceKm: distance,
		CreatedAt:  uc.now().UTC(),
	}
	if err := uc.trips.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}
	return trip, nil
}

func (uc *ReviewUseCase) finishedJob(ctx context.Context, userID, jobID string) (*domain.ExtractionJob, *domain.CallSheetExtraction, error) {
	job, err := uc.jobs.GetForUser(ctx, userID, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("get job: %w", err)
	}
	if err := requireDone(job); err != nil {
		return nil, nil, err
	}
	extraction, err := uc.jobs.GetResult(ctx, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("get result: %w", err)
	}
	return job, extraction, nil
}

func (uc *ReviewUseCase) profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	profile, err := uc.profiles.GetProfile(ctx, userID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.UserProfile{UserID: userID}, nil
		}
		return domain.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

// findOrCreateProject matches project names case-insensitively.
func (uc *ReviewUseCase) findOrCreateProject(ctx context.Context, userID, name string) (*domain.Project, error) {
	project, err := uc.trips.FindProjectByName(ctx, userID, name)
	if err == nil {
		return project, nil
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find project: %w", err)
	}

	project = &domain.Project{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: uc.now().UTC(),
	}
	if err := uc.trips.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}
