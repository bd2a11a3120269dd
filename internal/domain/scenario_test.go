package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloodForcing_RainfallBounds(t *testing.T) {
	tests := []struct {
		name     string
		rainfall float64
		wantErr  bool
	}{
		{"lower bound accepted", 15, false},
		{"upper bound accepted", 220, false},
		{"mid range accepted", 65, false},
		{"just below lower bound", 14.9, true},
		{"just above upper bound", 220.1, true},
		{"NaN rejected", math.NaN(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FloodForcing{RainfallMMH: tt.rainfall, DurationH: 1}.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrOutOfRange)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "rainfall_mm_h", ve.Field)
		})
	}
}

func TestWindForcing_Validate(t *testing.T) {
	assert.NoError(t, WindForcing{SpeedMS: 5, DirectionDeg: 0}.Validate())
	assert.NoError(t, WindForcing{SpeedMS: 35, DirectionDeg: 360}.Validate())
	assert.ErrorIs(t, WindForcing{SpeedMS: 4.99, DirectionDeg: 270}.Validate(), ErrOutOfRange)
	assert.ErrorIs(t, WindForcing{SpeedMS: 35.01, DirectionDeg: 270}.Validate(), ErrOutOfRange)
	assert.ErrorIs(t, WindForcing{SpeedMS: 10, DirectionDeg: -1}.Validate(), ErrOutOfRange)
}

func TestThermalForcing_Validate(t *testing.T) {
	assert.NoError(t, ThermalForcing{AirTempC: -5, RelHumidity: 50}.Validate())
	assert.NoError(t, ThermalForcing{AirTempC: 38, RelHumidity: 50, Season: SeasonSummer}.Validate())
	assert.ErrorIs(t, ThermalForcing{AirTempC: -5.1, RelHumidity: 50}.Validate(), ErrOutOfRange)
	assert.ErrorIs(t, ThermalForcing{AirTempC: 38.1, RelHumidity: 50}.Validate(), ErrOutOfRange)
	assert.ErrorIs(t, ThermalForcing{AirTempC: 20, RelHumidity: 101}.Validate(), ErrOutOfRange)
	assert.ErrorIs(t, ThermalForcing{AirTempC: 20, RelHumidity: 50, Season: "monsoon"}.Validate(), ErrInvalidScenario)
}

func TestScenario_Validate(t *testing.T) {
	t.Run("wraps forcing error with key", func(t *testing.T) {
		s := Scenario{Name: "Too Light", Forcing: FloodForcing{RainfallMMH: 10, DurationH: 1}}
		err := s.Validate()
		require.ErrorIs(t, err, ErrOutOfRange)
		assert.Contains(t, err.Error(), "too_light")
	})

	t.Run("missing forcing", func(t *testing.T) {
		err := Scenario{Name: "empty"}.Validate()
		require.ErrorIs(t, err, ErrInvalidScenario)
	})

	t.Run("missing name", func(t *testing.T) {
		err := Scenario{Name: " - ", Forcing: WindForcing{SpeedMS: 10, DirectionDeg: 270}}.Validate()
		require.ErrorIs(t, err, ErrInvalidScenario)
	})
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Heavy rain":            "heavy_rain",
		"Wind - NW, strong!":    "wind_nw_strong",
		"  Extreme   heat  ":    "extreme_heat",
		"Ekstremalna nawałnica": "ekstremalna_nawałnica",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestParseModule(t *testing.T) {
	m, err := ParseModule(" Wind ")
	require.NoError(t, err)
	assert.Equal(t, ModuleWind, m)

	_, err = ParseModule("quake")
	assert.ErrorIs(t, err, ErrInvalidScenario)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(&ValidationError{Field: "x"}))
	assert.True(t, IsRejection(ErrMissingWindField))
	assert.False(t, IsRejection(&InstabilityError{Quantity: "depth"}))
	assert.False(t, IsRejection(errors.New("boom")))
}

func TestReferenceCatalog(t *testing.T) {
	c := ReferenceCatalog()

	assert.Len(t, c.ByModule(ModuleFlood), 6)
	assert.Len(t, c.ByModule(ModuleWind), 5)
	assert.Len(t, c.ByModule(ModuleThermal), 6)
	require.NoError(t, c.CheckUnique())

	for _, s := range c.Scenarios {
		assert.NoError(t, s.Validate(), s.Name)
	}

	ref, ok := c.Find(ModuleWind, c.ReferenceWind)
	require.True(t, ok)
	assert.Equal(t, WindForcing{SpeedMS: 10, DirectionDeg: 270}, ref.Forcing)
}

func TestCatalog_CheckUnique(t *testing.T) {
	c := Catalog{Scenarios: []Scenario{
		{Name: "Heavy rain", Forcing: FloodForcing{RainfallMMH: 65, DurationH: 2}},
		{Name: "heavy-rain", Forcing: FloodForcing{RainfallMMH: 70, DurationH: 2}},
	}}
	assert.ErrorIs(t, c.CheckUnique(), ErrDuplicateScenario)

	// Same key in different modules is allowed.
	c.Scenarios[1] = Scenario{Name: "heavy rain", Forcing: WindForcing{SpeedMS: 10, DirectionDeg: 90}}
	assert.NoError(t, c.CheckUnique())
}

func TestCatalog_ReferenceWindKey(t *testing.T) {
	c := Catalog{Scenarios: []Scenario{
		{Name: "Heatwave", Forcing: ThermalForcing{AirTempC: 36, RelHumidity: 40}},
		{Name: "Gale southwesterly", Forcing: WindForcing{SpeedMS: 20, DirectionDeg: 225}},
		{Name: "Calm easterly", Forcing: WindForcing{SpeedMS: 3, DirectionDeg: 90}},
	}}
	assert.Equal(t, "gale_southwesterly", c.ReferenceWindKey())

	c.ReferenceWind = "calm_easterly"
	assert.Equal(t, "calm_easterly", c.ReferenceWindKey())

	c.ReferenceWind = "Calm easterly"
	assert.Equal(t, "calm_easterly", c.ReferenceWindKey())
	_, ok := c.Find(ModuleWind, c.ReferenceWindKey())
	assert.True(t, ok)

	assert.Empty(t, Catalog{}.ReferenceWindKey())
}
