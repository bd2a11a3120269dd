package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDepth(t *testing.T) {
	tests := []struct {
		depth float64
		want  FloodRisk
	}{
		{0, RiskMinimal},
		{0.049, RiskMinimal},
		{0.05, RiskLow},
		{0.15, RiskModerate},
		{0.399, RiskModerate},
		{0.40, RiskHigh},
		{0.80, RiskCritical},
		{3.2, RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyDepth(tt.depth), "depth %g", tt.depth)
	}
}

func TestClassifyPedestrianWind(t *testing.T) {
	assert.Equal(t, WindComfortable, ClassifyPedestrianWind(3.9))
	assert.Equal(t, WindAcceptable, ClassifyPedestrianWind(4))
	assert.Equal(t, WindUncomfortable, ClassifyPedestrianWind(7.5))
	assert.Equal(t, WindDangerous, ClassifyPedestrianWind(11.9))
	assert.Equal(t, WindExtreme, ClassifyPedestrianWind(12))
}

func TestClassifyUTCI(t *testing.T) {
	assert.Equal(t, StressExtremeCold, ClassifyUTCI(-45))
	assert.Equal(t, StressModerateCold, ClassifyUTCI(-5))
	assert.Equal(t, StressNone, ClassifyUTCI(9))
	assert.Equal(t, StressNone, ClassifyUTCI(25.9))
	assert.Equal(t, StressModerateHeat, ClassifyUTCI(26))
	assert.Equal(t, StressVeryStrongHeat, ClassifyUTCI(40))
	assert.Equal(t, StressExtremeHeat, ClassifyUTCI(46))
}

func TestClassMarshalText(t *testing.T) {
	data, err := json.Marshal(map[WindComfort]int{WindComfortable: 3, WindExtreme: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"comfortable":3,"extreme":1}`, string(data))

	data, err = json.Marshal(struct {
		Risk FloodRisk `json:"risk"`
	}{RiskHigh})
	require.NoError(t, err)
	assert.JSONEq(t, `{"risk":"high"}`, string(data))
}

func TestProfileSpeed(t *testing.T) {
	assert.Equal(t, 10.0, ProfileSpeed(10, ReferenceHeightM, ReferenceHeightM))

	ped := ProfileSpeed(10, ReferenceHeightM, PedestrianHeightM)
	assert.InDelta(t, 10*math.Log(6)/math.Log(10.3/0.3), ped, 1e-12)
	assert.InDelta(t, 10, ProfileSpeed(ped, PedestrianHeightM, ReferenceHeightM), 1e-9)
}

func TestFlowVector(t *testing.T) {
	e, n := FlowVector(10, 270)
	assert.Equal(t, 10.0, e)
	assert.Equal(t, 0.0, n)

	e, n = FlowVector(10, 0)
	assert.Equal(t, 0.0, e)
	assert.Equal(t, -10.0, n)

	assert.InDelta(t, 270, MeteorologicalDirection(10, 0), 1e-9)
	assert.InDelta(t, 315, MeteorologicalDirection(FlowVector(5, 315)), 1e-9)
}

func TestWindField_Check(t *testing.T) {
	g, err := NewGrid(flatSpec(3, 2))
	require.NoError(t, err)

	var missing *WindField
	assert.ErrorIs(t, missing.Check(g), ErrMissingWindField)

	f := UniformWindField(g, 2, 180, PedestrianHeightM)
	require.NoError(t, f.Check(g))
	assert.InDelta(t, 2, f.Speed(4), 1e-12)

	f.East = f.East[:2]
	assert.ErrorIs(t, f.Check(g), ErrMissingWindField)
}
