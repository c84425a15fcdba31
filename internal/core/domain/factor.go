package domain

import (
	"fmt"
	"strings"
)

const (
	FactorSourceData     = "data"
	FactorSourceFallback = "fallback"
)

type FuelType string

const (
	FuelDiesel   FuelType = "diesel"
	FuelGasoline FuelType = "gasoline"
	FuelLPG      FuelType = "lpg"
	FuelCNG      FuelType = "cng"
)

func ParseFuelType(s string) (FuelType, error) {
	ft := FuelType(strings.ToLower(strings.TrimSpace(s)))
	switch ft {
	case "petrol", "benzin":
		return FuelGasoline, nil
	case FuelDiesel, FuelGasoline, FuelLPG, FuelCNG:
		return ft, nil
	}
	return "", WrapError(ErrInvalidInput, "parse fuel type", fmt.Errorf("unsupported fuel type %q", s))
}

// FuelFactor is the response of a fuel emission factor lookup.
type FuelFactor struct {
	FuelType       FuelType `json:"fuelType"`
	KgCO2ePerLiter float64  `json:"kgCo2ePerLiter"`
	Source         string   `json:"source"`
	Fallback       bool     `json:"fallback"`
}

// GridIntensity is the carbon intensity of a country's electricity grid.
type GridIntensity struct {
	CountryCode     string  `json:"country"`
	GramsCO2ePerKWh float64 `json:"gCo2ePerKwh"`
	Source          string  `json:"source"`
	Fallback        bool    `json:"fallback"`
}

// FactorDefaults are the static values served when live emission data is
// unavailable.
type FactorDefaults struct {
	Fuel        map[FuelType]float64
	Grid        map[string]float64
	GridDefault float64
}
