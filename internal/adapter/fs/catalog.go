package fs

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

type catalogFile struct {
	ReferenceWind string          `yaml:"reference_wind"`
	Scenarios     []scenarioEntry `yaml:"scenarios"`
}

// scenarioEntry is one catalog line; only the fields of its module are read.
type scenarioEntry struct {
	Name   string `yaml:"name"`
	Module string `yaml:"module"`

	RainfallMMH float64 `yaml:"rainfall_mm_h,omitempty"`
	DurationH   float64 `yaml:"duration_h,omitempty"`

	SpeedMS      float64 `yaml:"speed_ms,omitempty"`
	DirectionDeg float64 `yaml:"direction_deg,omitempty"`

	AirTempC    float64 `yaml:"air_temp_c,omitempty"`
	RelHumidity float64 `yaml:"rel_humidity,omitempty"`
	SolarWm2    float64 `yaml:"solar_w_m2,omitempty"`
	Season      string  `yaml:"season,omitempty"`
}

// LoadCatalog reads a scenario catalog. Range validation is left to the run so
// that one out-of-range scenario is rejected on its own; unknown modules and
// fields fail the whole file.
func LoadCatalog(path string) (domain.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read scenario catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes catalog YAML.
func ParseCatalog(raw []byte) (domain.Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var cf catalogFile
	if err := dec.Decode(&cf); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse scenario catalog: %w", err)
	}

	cat := domain.Catalog{ReferenceWind: cf.ReferenceWind}
	for i, e := range cf.Scenarios {
		m, err := domain.ParseModule(e.Module)
		if err != nil {
			return domain.Catalog{}, fmt.Errorf("scenario %d (%s): %w", i, e.Name, err)
		}
		s := domain.Scenario{Name: e.Name}
		switch m {
		case domain.ModuleFlood:
			s.Forcing = domain.FloodForcing{RainfallMMH: e.RainfallMMH, DurationH: e.DurationH}
		case domain.ModuleWind:
			s.Forcing = domain.WindForcing{SpeedMS: e.SpeedMS, DirectionDeg: e.DirectionDeg}
		case domain.ModuleThermal:
			s.Forcing = domain.ThermalForcing{
				AirTempC:    e.AirTempC,
				RelHumidity: e.RelHumidity,
				SolarWm2:    e.SolarWm2,
				Season:      domain.Season(e.Season),
			}
		}
		cat.Scenarios = append(cat.Scenarios, s)
	}
	if err := cat.CheckUnique(); err != nil {
		return domain.Catalog{}, err
	}
	return cat, nil
}

// EncodeCatalog renders cat in the catalog file format.
func EncodeCatalog(cat domain.Catalog) ([]byte, error) {
	cf := catalogFile{ReferenceWind: cat.ReferenceWind}
	for _, s := range cat.Scenarios {
		e := scenarioEntry{Name: s.Name, Module: string(s.Module())}
		switch f := s.Forcing.(type) {
		case domain.FloodForcing:
			e.RainfallMMH, e.DurationH = f.RainfallMMH, f.DurationH
		case domain.WindForcing:
			e.SpeedMS, e.DirectionDeg = f.SpeedMS, f.DirectionDeg
		case domain.ThermalForcing:
			e.AirTempC, e.RelHumidity, e.SolarWm2, e.Season = f.AirTempC, f.RelHumidity, f.SolarWm2, string(f.Season)
		}
		cf.Scenarios = append(cf.Scenarios, e)
	}
	return yaml.Marshal(cf)
}
