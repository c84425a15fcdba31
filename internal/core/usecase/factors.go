package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

const (
	FuelFactorTTL    = 30 * 24 * time.Hour
	GridIntensityTTL = 6 * time.Hour
)

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// FactorUseCase serves emission values from the process cache, the live data
// services, or the static defaults, in that order. Fallback values are never
// cached so a recovered service is picked up on the next call.
type FactorUseCase struct {
	fuel        ports.FuelFactorSource
	grid        ports.GridIntensitySource
	defaults    domain.FactorDefaults
	cache       ports.FactorCache
	dataVersion string
	observer    ports.PipelineObserver
}

func NewFactorUseCase(
	fuel ports.FuelFactorSource,
	grid ports.GridIntensitySource,
	defaults domain.FactorDefaults,
	cache ports.FactorCache,
	dataVersion string,
	observer ports.PipelineObserver,
) *FactorUseCase {
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	return &FactorUseCase{
		fuel:        fuel,
		grid:        grid,
		defaults:    defaults,
		cache:       cache,
		dataVersion: dataVersion,
		observer:    observer,
	}
}

func FuelCacheKey(fuelType domain.FuelType, dataVersion string) string {
	return fmt.Sprintf("fuel:%s:%s:v1", fuelType, dataVersion)
}

func GridCacheKey(countryCode string) string {
	return fmt.Sprintf("grid:%s:v1", countryCode)
}

func (uc *FactorUseCase) FuelFactor(ctx context.Context, rawFuelType string) (domain.FuelFactor, error) {
	fuelType, err := domain.ParseFuelType(rawFuelType)
	if err != nil {
		return domain.FuelFactor{}, err
	}

	key := FuelCacheKey(fuelType, uc.dataVersion)
	if v, ok := uc.cache.Get(key); ok {
		return domain.FuelFactor{FuelType: fuelType, KgCO2ePerLiter: v, Source: domain.FactorSourceData}, nil
	}

	reading, err := uc.fuel.FuelFactorPerLiter(ctx, fuelType)
	if err == nil {
		var kg float64
		kg, err = toKilograms(reading)
		if err == nil {
			uc.cache.Put(key, kg, FuelFactorTTL)
			return domain.FuelFactor{FuelType: fuelType, KgCO2ePerLiter: kg, Source: domain.FactorSourceData}, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.FuelFactor{}, ctxErr
	}

	fallback, ok := uc.defaults.Fuel[fuelType]
	if !ok {
		return domain.FuelFactor{}, domain.WrapError(domain.ErrUpstream, "fuel factor", fmt.Errorf("no fallback for %s: %w", fuelType, err))
	}
	uc.warnFallback("fuel_factor", err, "fuel_type", string(fuelType))
	return domain.FuelFactor{
		FuelType:       fuelType,
		KgCO2ePerLiter: fallback,
		Source:         domain.FactorSourceFallback,
		Fallback:       true,
	}, nil
}

func (uc *FactorUseCase) GridIntensity(ctx context.Context, rawCountry string) (domain.GridIntensity, error) {
	cc := strings.ToUpper(strings.TrimSpace(rawCountry))
	if !countryCodePattern.MatchString(cc) {
		return domain.GridIntensity{}, domain.WrapError(domain.ErrInvalidInput, "grid intensity", fmt.Errorf("country must be an ISO 3166 alpha-2 code, got %q", rawCountry))
	}

	key := GridCacheKey(cc)
	if v, ok := uc.cache.Get(key); ok {
		return domain.GridIntensity{CountryCode: cc, GramsCO2ePerKWh: v, Source: domain.FactorSourceData}, nil
	}

	reading, err := uc.grid.CarbonIntensity(ctx, cc)
	if err == nil {
		var kg float64
		kg, err = toKilograms(reading)
		if err == nil {
			grams := kg * 1000
			uc.cache.Put(key, grams, GridIntensityTTL)
			return domain.GridIntensity{CountryCode: cc, GramsCO2ePerKWh: grams, Source: domain.FactorSourceData}, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.GridIntensity{}, ctxErr
	}

	fallback, ok := uc.defaults.Grid[cc]
	if !ok {
		fallback = uc.defaults.GridDefault
	}
	uc.warnFallback("grid_intensity", err, "country", cc)
	return domain.GridIntensity{
		CountryCode:     cc,
		GramsCO2ePerKWh: fallback,
		Source:          domain.FactorSourceFallback,
		Fallback:        true,
	}, nil
}

func (uc *FactorUseCase) warnFallback(component string, cause error, attrs ...any) {
	uc.observer.FallbackUsed(component)
	if domain.IsKind(cause, domain.ErrConfiguration) {
		slog.Debug("factor_fallback", append(attrs, "component", component, "reason", "unconfigured")...)
		return
	}
	slog.Warn("factor_fallback", append(attrs, "component", component, "error", cause)...)
}

var massUnits = map[string]float64{
	"kg": 1,
	"g":  0.001,
	"t":  1000,
	"lb": 0.45359237,
}

// toKilograms validates a data-service payload and converts it to kg.
func toKilograms(r ports.FactorReading) (float64, error) {
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) || r.Value <= 0 {
		return 0, domain.WrapError(domain.ErrParse, "factor reading", fmt.Errorf("invalid value %v", r.Value))
	}
	factor, ok := massUnits[strings.ToLower(strings.TrimSpace(r.Unit))]
	if !ok {
		return 0, domain.WrapError(domain.ErrParse, "factor reading", errors.New("unexpected unit "+r.Unit))
	}
	return r.Value * factor, nil
}
