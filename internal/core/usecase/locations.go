package usecase

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/normalize"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

const defaultGeocodeConcurrency = 4

// LocationResolver turns raw call-sheet locations into addresses and a
// round-trip distance. Every failure degrades to the raw value; nothing here
// returns an error.
type LocationResolver struct {
	geocoder    ports.Geocoder
	routes      ports.RoutePlanner
	concurrency int
	observer    ports.PipelineObserver
}

func NewLocationResolver(geocoder ports.Geocoder, routes ports.RoutePlanner, concurrency int, observer ports.PipelineObserver) *LocationResolver {
	if concurrency <= 0 {
		concurrency = defaultGeocodeConcurrency
	}
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	return &LocationResolver{geocoder: geocoder, routes: routes, concurrency: concurrency, observer: observer}
}

// Resolve returns exactly one candidate per input, in input order. Lookups
// run concurrently and write into their own index.
func (r *LocationResolver) Resolve(ctx context.Context, profile domain.UserProfile, raws []string) []domain.LocationCandidate {
	out := make([]domain.LocationCandidate, len(raws))
	for i, raw := range raws {
		out[i] = fallbackCandidate(raw, strings.TrimSpace(raw))
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	region := strings.ToLower(strings.TrimSpace(profile.CountryCode))
	for i, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					slog.Error("geocode_panic", "index", i, "panic", p)
				}
			}()
			out[i] = r.resolveOne(ctx, raw, InjectContext(raw, profile), region)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *LocationResolver) resolveOne(ctx context.Context, raw, query, region string) domain.LocationCandidate {
	res, err := r.geocoder.Geocode(ctx, query, region)
	if err != nil || strings.TrimSpace(res.FormattedAddress) == "" {
		if err != nil && !domain.IsKind(err, domain.ErrNotFound) && !domain.IsKind(err, domain.ErrConfiguration) {
			slog.Warn("geocode_fallback", "error", err)
		}
		r.observer.FallbackUsed("geocode")
		return fallbackCandidate(raw, query)
	}
	return domain.LocationCandidate{
		RawText:          raw,
		Query:            query,
		FormattedAddress: res.FormattedAddress,
	}
}

func fallbackCandidate(raw, query string) domain.LocationCandidate {
	return domain.LocationCandidate{
		RawText:          raw,
		Query:            query,
		FormattedAddress: strings.TrimSpace(raw),
		UsedFallback:     true,
	}
}

// InjectContext appends the user's city and country to a raw location that
// does not already mention them, so short venue names geocode in the right
// region.
func InjectContext(raw string, profile domain.UserProfile) string {
	query := strings.TrimSpace(raw)
	lower := strings.ToLower(query)
	for _, part := range []string{profile.City, profile.Country} {
		part = strings.TrimSpace(part)
		if part == "" || strings.Contains(lower, strings.ToLower(part)) {
			continue
		}
		query += ", " + part
	}
	return query
}

// Distance measures base → candidates (in order) → base. On any failure the
// current value is kept and UsedFallback is set.
func (r *LocationResolver) Distance(ctx context.Context, profile domain.UserProfile, candidates []domain.LocationCandidate, current *float64) domain.RouteDistance {
	keep := domain.RouteDistance{DistanceKm: current, UsedFallback: true}

	base := strings.TrimSpace(profile.BaseAddress)
	waypoints := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if addr := strings.TrimSpace(c.Address()); addr != "" {
			waypoints = append(waypoints, addr)
		}
	}
	if base == "" || len(waypoints) == 0 || r.routes == nil {
		return keep
	}

	meters, err := r.routes.RouteMeters(ctx, base, base, waypoints)
	if err != nil || meters <= 0 {
		if err != nil && !domain.IsKind(err, domain.ErrConfiguration) {
			slog.Warn("route_fallback", "waypoints", len(waypoints), "error", err)
		}
		r.observer.FallbackUsed("route")
		return keep
	}

	km := normalize.Round(meters/1000, 1)
	return domain.RouteDistance{TotalMeters: meters, DistanceKm: &km}
}
