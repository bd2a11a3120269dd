package domain

import (
	"fmt"
	"math"
)

// Atmospheric surface-layer constants shared by the wind and thermal modules.
const (
	// ReferenceHeightM is the measurement height of inlet wind speeds.
	ReferenceHeightM = 10.0
	// PedestrianHeightM is the height at which comfort is assessed.
	PedestrianHeightM = 1.5
	// UrbanRoughnessM is the aerodynamic roughness length of the urban canopy.
	UrbanRoughnessM = 0.3
)

// ProfileSpeed rescales a wind speed measured at fromHeight to toHeight using
// the neutral logarithmic profile over an urban roughness length.
func ProfileSpeed(speed, fromHeight, toHeight float64) float64 {
	if fromHeight == toHeight {
		return speed
	}
	z0 := UrbanRoughnessM
	return speed * math.Log((toHeight+z0)/z0) / math.Log((fromHeight+z0)/z0)
}

// FlowVector converts a meteorological wind (speed, direction blown from) into
// east and north velocity components.
func FlowVector(speed, directionDeg float64) (east, north float64) {
	rad := NormalizeDirection(directionDeg) * math.Pi / 180
	east = -speed * math.Sin(rad)
	north = -speed * math.Cos(rad)
	return snap(east), snap(north)
}

// MeteorologicalDirection returns the direction (degrees, blowing from) of an
// east/north velocity. A calm vector returns 0.
func MeteorologicalDirection(east, north float64) float64 {
	if east == 0 && north == 0 {
		return 0
	}
	return NormalizeDirection(math.Atan2(-east, -north) * 180 / math.Pi)
}

func snap(v float64) float64 {
	if math.Abs(v) < 1e-12 {
		return 0
	}
	return v
}

// WindField is a per-cell wind velocity (east/north, m/s) at HeightM above
// ground. It is the cross-module input of the thermal solver.
type WindField struct {
	Scenario string
	HeightM  float64
	East     []float64
	North    []float64
}

// UniformWindField returns a field with the same vector in every cell of g.
func UniformWindField(g *Grid, speed, directionDeg, heightM float64) *WindField {
	e, n := FlowVector(speed, directionDeg)
	f := &WindField{
		Scenario: "uniform",
		HeightM:  heightM,
		East:     make([]float64, g.Len()),
		North:    make([]float64, g.Len()),
	}
	for i := range f.East {
		f.East[i], f.North[i] = e, n
	}
	return f
}

// Speed returns the wind speed magnitude of cell i.
func (f *WindField) Speed(i int) float64 { return math.Hypot(f.East[i], f.North[i]) }

// SpeedAt returns the speed of cell i rescaled to height h.
func (f *WindField) SpeedAt(i int, h float64) float64 {
	return ProfileSpeed(f.Speed(i), f.HeightM, h)
}

// Check verifies that f can drive a run over g.
func (f *WindField) Check(g *Grid) error {
	if f == nil {
		return ErrMissingWindField
	}
	if len(f.East) != g.Len() || len(f.North) != g.Len() {
		return fmt.Errorf("%w: field has %d cells, grid has %d", ErrMissingWindField, len(f.East), g.Len())
	}
	if !(f.HeightM > 0) {
		return fmt.Errorf("%w: field height %g", ErrMissingWindField, f.HeightM)
	}
	return nil
}
