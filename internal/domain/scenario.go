package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Module names one of the physics modules.
type Module string

const (
	ModuleFlood   Module = "flood"
	ModuleWind    Module = "wind"
	ModuleThermal Module = "thermal"
)

// Modules lists the modules in their canonical run order.
var Modules = []Module{ModuleFlood, ModuleWind, ModuleThermal}

// ParseModule validates a module name.
func ParseModule(s string) (Module, error) {
	switch m := Module(strings.ToLower(strings.TrimSpace(s))); m {
	case ModuleFlood, ModuleWind, ModuleThermal:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown module %q", ErrInvalidScenario, s)
}

// Range is an inclusive validated interval.
type Range struct {
	Min, Max float64
	Unit     string
}

// Contains reports whether v lies in [Min, Max]. NaN is never contained.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r Range) check(field string, v float64) error {
	if !r.Contains(v) {
		return &ValidationError{Field: field, Value: v, Range: r}
	}
	return nil
}

// Validated physical ranges for scenario forcing.
var (
	RainfallRange       = Range{Min: 15, Max: 220, Unit: "mm/h"}
	DurationRange       = Range{Min: 0.1, Max: 48, Unit: "h"}
	WindSpeedRange      = Range{Min: 5, Max: 35, Unit: "m/s"}
	DirectionRange      = Range{Min: 0, Max: 360, Unit: "deg"}
	AirTemperatureRange = Range{Min: -5, Max: 38, Unit: "°C"}
	HumidityRange       = Range{Min: 0, Max: 100, Unit: "%"}
	SolarRange          = Range{Min: 0, Max: 1200, Unit: "W/m²"}
)

// Forcing is the module-specific parameter set of a scenario.
type Forcing interface {
	Module() Module
	Validate() error
}

// FloodForcing is a constant-intensity design storm.
type FloodForcing struct {
	RainfallMMH float64 `json:"rainfall_mm_h" yaml:"rainfall_mm_h"`
	DurationH   float64 `json:"duration_h" yaml:"duration_h"`
}

func (FloodForcing) Module() Module { return ModuleFlood }

func (f FloodForcing) Validate() error {
	if err := RainfallRange.check("rainfall_mm_h", f.RainfallMMH); err != nil {
		return err
	}
	return DurationRange.check("duration_h", f.DurationH)
}

// WindForcing is the inlet wind at the reference height. DirectionDeg is the
// meteorological direction the wind blows from (270 = westerly).
type WindForcing struct {
	SpeedMS      float64 `json:"speed_ms" yaml:"speed_ms"`
	DirectionDeg float64 `json:"direction_deg" yaml:"direction_deg"`
}

func (WindForcing) Module() Module { return ModuleWind }

func (f WindForcing) Validate() error {
	if err := WindSpeedRange.check("speed_ms", f.SpeedMS); err != nil {
		return err
	}
	return DirectionRange.check("direction_deg", f.DirectionDeg)
}

// Season selects the clothing assumption of the thermal module.
type Season string

const (
	SeasonNone   Season = ""
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// Declination returns the solar declination (degrees) representative of the
// season: solstices for winter and summer, equinox otherwise.
func (s Season) Declination() float64 {
	switch s {
	case SeasonWinter:
		return -23.44
	case SeasonSummer:
		return 23.44
	default:
		return 0
	}
}

func (s Season) valid() bool {
	switch s {
	case SeasonNone, SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn:
		return true
	}
	return false
}

// ThermalForcing is the ambient microclimate of a thermal scenario.
type ThermalForcing struct {
	AirTempC    float64 `json:"air_temp_c" yaml:"air_temp_c"`
	RelHumidity float64 `json:"rel_humidity" yaml:"rel_humidity"`
	SolarWm2    float64 `json:"solar_w_m2" yaml:"solar_w_m2"`
	Season      Season  `json:"season,omitempty" yaml:"season"`
}

func (ThermalForcing) Module() Module { return ModuleThermal }

func (f ThermalForcing) Validate() error {
	if err := AirTemperatureRange.check("air_temp_c", f.AirTempC); err != nil {
		return err
	}
	if err := HumidityRange.check("rel_humidity", f.RelHumidity); err != nil {
		return err
	}
	if err := SolarRange.check("solar_w_m2", f.SolarWm2); err != nil {
		return err
	}
	if !f.Season.valid() {
		return fmt.Errorf("%w: unknown season %q", ErrInvalidScenario, f.Season)
	}
	return nil
}

// Scenario is a named forcing definition consumed by exactly one module.
type Scenario struct {
	Name    string
	Forcing Forcing
}

// Module returns the module of the scenario's forcing, or "" if unset.
func (s Scenario) Module() Module {
	if s.Forcing == nil {
		return ""
	}
	return s.Forcing.Module()
}

// Key returns a stable lowercase slug of the scenario name.
func (s Scenario) Key() string { return Slug(s.Name) }

// Validate checks the descriptor before any solver work.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" || s.Key() == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidScenario)
	}
	if s.Forcing == nil {
		return fmt.Errorf("%w: %s has no forcing", ErrInvalidScenario, s.Name)
	}
	if err := s.Forcing.Validate(); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Key(), err)
	}
	return nil
}

// Slug lowercases s and joins its alphanumeric runs with underscores.
func Slug(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// NormalizeDirection maps any angle in degrees to [0, 360).
func NormalizeDirection(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}
