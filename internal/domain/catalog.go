package domain

import "fmt"

// Catalog is the enumerated scenario set of one deployment.
type Catalog struct {
	// ReferenceWind names the wind scenario whose field feeds every thermal
	// scenario, either by key or by display name.
	ReferenceWind string
	Scenarios     []Scenario
}

// ByModule returns the scenarios of module m in catalog order.
func (c Catalog) ByModule(m Module) []Scenario {
	var out []Scenario
	for _, s := range c.Scenarios {
		if s.Module() == m {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the scenario of module m with the given key.
func (c Catalog) Find(m Module, key string) (Scenario, bool) {
	for _, s := range c.Scenarios {
		if s.Module() == m && s.Key() == key {
			return s, true
		}
	}
	return Scenario{}, false
}

// ReferenceWindKey returns the key of the wind scenario whose field feeds the
// thermal scenarios, defaulting to the first wind scenario.
func (c Catalog) ReferenceWindKey() string {
	if key := Slug(c.ReferenceWind); key != "" {
		return key
	}
	if winds := c.ByModule(ModuleWind); len(winds) > 0 {
		return winds[0].Key()
	}
	return ""
}

// CheckUnique reports the first scenario key that appears twice within a module.
// Range validation is left to the orchestrator so that one bad scenario does
// not reject the whole catalog.
func (c Catalog) CheckUnique() error {
	seen := make(map[Module]map[string]bool)
	for _, s := range c.Scenarios {
		m := s.Module()
		if seen[m] == nil {
			seen[m] = make(map[string]bool)
		}
		if seen[m][s.Key()] {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateScenario, m, s.Key())
		}
		seen[m][s.Key()] = true
	}
	return nil
}

// ReferenceCatalog returns the reference deployment: 6 flood, 5 wind and
// 6 thermal scenarios.
func ReferenceCatalog() Catalog {
	return Catalog{
		ReferenceWind: "moderate_westerly",
		Scenarios: []Scenario{
			{Name: "Light rain", Forcing: FloodForcing{RainfallMMH: 15, DurationH: 4}},
			{Name: "Moderate rain", Forcing: FloodForcing{RainfallMMH: 30, DurationH: 3}},
			{Name: "Heavy rain", Forcing: FloodForcing{RainfallMMH: 65, DurationH: 2}},
			{Name: "Intense downpour", Forcing: FloodForcing{RainfallMMH: 100, DurationH: 1.5}},
			{Name: "Cloudburst", Forcing: FloodForcing{RainfallMMH: 150, DurationH: 1}},
			{Name: "Extreme cloudburst", Forcing: FloodForcing{RainfallMMH: 220, DurationH: 0.5}},

			{Name: "Calm westerly", Forcing: WindForcing{SpeedMS: 5, DirectionDeg: 270}},
			{Name: "Moderate westerly", Forcing: WindForcing{SpeedMS: 10, DirectionDeg: 270}},
			{Name: "Strong northwesterly", Forcing: WindForcing{SpeedMS: 15, DirectionDeg: 315}},
			{Name: "Gale southwesterly", Forcing: WindForcing{SpeedMS: 25, DirectionDeg: 225}},
			{Name: "Storm westerly", Forcing: WindForcing{SpeedMS: 35, DirectionDeg: 270}},

			{Name: "Frosty winter", Forcing: ThermalForcing{AirTempC: -5, RelHumidity: 75, SolarWm2: 50, Season: SeasonWinter}},
			{Name: "Cool spring", Forcing: ThermalForcing{AirTempC: 12, RelHumidity: 65, SolarWm2: 350, Season: SeasonSpring}},
			{Name: "Comfortable summer", Forcing: ThermalForcing{AirTempC: 22, RelHumidity: 55, SolarWm2: 400, Season: SeasonSummer}},
			{Name: "Warm summer", Forcing: ThermalForcing{AirTempC: 28, RelHumidity: 50, SolarWm2: 650, Season: SeasonSummer}},
			{Name: "Heatwave", Forcing: ThermalForcing{AirTempC: 32, RelHumidity: 45, SolarWm2: 800, Season: SeasonSummer}},
			{Name: "Extreme heat", Forcing: ThermalForcing{AirTempC: 38, RelHumidity: 35, SolarWm2: 900, Season: SeasonSummer}},
		},
	}
}
