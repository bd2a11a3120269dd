package thermal

import (
	"math"
	"testing"

	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPMV_ISOReference(t *testing.T) {
	// ISO 7730 worked example: 22 °C, still air, 60 % RH, seated light work.
	pmv, err := PMV(22, 22, 0.1, 60, 1.2, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, -0.75, pmv, 0.01)
	assert.InDelta(t, 17, PPD(pmv), 0.2)
}

func TestComfortScore_Anchors(t *testing.T) {
	mild, err := PMV(20, 20, 1, 50, WalkingMet, DefaultClo)
	require.NoError(t, err)
	assert.InDelta(t, 4.95, ComfortScore(mild), 0.01)

	hot, err := PMV(38, 38, 1, 50, WalkingMet, DefaultClo)
	require.NoError(t, err)
	assert.Less(t, ComfortScore(hot), 0.01)
	assert.GreaterOrEqual(t, ComfortScore(hot), 0.0)
}

func TestComfortScore_MonotoneInAbsPMV(t *testing.T) {
	assert.InDelta(t, 5, ComfortScore(0), 1e-12)

	prev := ComfortScore(0)
	for p := 0.05; p <= 4; p += 0.05 {
		up, down := ComfortScore(p), ComfortScore(-p)
		assert.InDelta(t, up, down, 1e-12, "pmv %g", p)
		assert.LessOrEqual(t, up, prev, "pmv %g", p)
		prev = up
	}
}

func TestPMV_RisesWithTemperature(t *testing.T) {
	prev := math.Inf(-1)
	for ta := -5.0; ta <= 38; ta++ {
		pmv, err := PMV(ta, ta, 0.5, 50, WalkingMet, DefaultClo)
		require.NoError(t, err, "ta %g", ta)
		assert.Greater(t, pmv, prev, "ta %g", ta)
		prev = pmv
	}
}

func TestPET(t *testing.T) {
	assert.InDelta(t, 18, PET(0), 0)
	assert.InDelta(t, 32, PET(2), 1e-12)
}

func TestUTCI(t *testing.T) {
	tests := []struct {
		name           string
		ta, tr, va, rh float64
		want           float64
	}{
		{"calm neutral", 25, 25, 0.3, 50, 25},
		{"radiant load", 30, 50, 0.5, 50, 38},
		{"windy cool", 10, 20, 4, 60, 10 + 4 - 4 - 0.05},
		{"humid warm", 30, 30, 0.5, 80, 30.3},
		{"wind clamp", 5, 5, 40, 50, 5 - 2*math.Sqrt(17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, UTCI(tt.ta, tt.tr, tt.va, tt.rh), 1e-9)
		})
	}
}

func TestSaturationPressure(t *testing.T) {
	// About 2.34 kPa at 20 °C.
	assert.InDelta(t, 2.34, SaturationPressure(20), 0.02)
	assert.Greater(t, SaturationPressure(30), SaturationPressure(20))
}

func TestClothingFor(t *testing.T) {
	assert.InDelta(t, 2.0, ClothingFor(domain.SeasonWinter, 1), 0)
	assert.InDelta(t, 1.0, ClothingFor(domain.SeasonSpring, 0.3), 0)
	assert.InDelta(t, 0.5, ClothingFor(domain.SeasonSummer, 1), 0)
	assert.InDelta(t, 1.2, ClothingFor(domain.SeasonAutumn, 1), 0)
	assert.InDelta(t, 0.7, ClothingFor(domain.SeasonNone, 0.7), 0)
}
