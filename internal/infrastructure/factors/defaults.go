package factors

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type fuelEntry struct {
	KgCO2ePerLiter float64 `yaml:"kg_co2e_per_liter"`
	ActivityID     string  `yaml:"activity_id"`
}

type defaultsFile struct {
	Fuel map[string]fuelEntry `yaml:"fuel"`
	Grid struct {
		Default   float64            `yaml:"default"`
		Countries map[string]float64 `yaml:"countries"`
	} `yaml:"grid"`
}

// Catalog is the parsed static table: fallback values plus the data-service
// activity id of each fuel.
type Catalog struct {
	Defaults    domain.FactorDefaults
	ActivityIDs map[domain.FuelType]string
}

func LoadCatalog() (Catalog, error) {
	return parseCatalog(defaultsYAML)
}

func parseCatalog(raw []byte) (Catalog, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse factor defaults: %w", err)
	}

	out := Catalog{
		Defaults: domain.FactorDefaults{
			Fuel:        make(map[domain.FuelType]float64, len(file.Fuel)),
			Grid:        make(map[string]float64, len(file.Grid.Countries)),
			GridDefault: file.Grid.Default,
		},
		ActivityIDs: make(map[domain.FuelType]string, len(file.Fuel)),
	}
	for name, entry := range file.Fuel {
		ft, err := domain.ParseFuelType(name)
		if err != nil {
			return Catalog{}, fmt.Errorf("factor defaults: %w", err)
		}
		if entry.KgCO2ePerLiter <= 0 {
			return Catalog{}, fmt.Errorf("factor defaults: non-positive value for %s", name)
		}
		out.Defaults.Fuel[ft] = entry.KgCO2ePerLiter
		out.ActivityIDs[ft] = entry.ActivityID
	}
	for cc, v := range file.Grid.Countries {
		out.Defaults.Grid[strings.ToUpper(cc)] = v
	}
	return out, nil
}
