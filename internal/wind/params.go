package wind

import (
	"errors"
	"fmt"
	"math"
)

// Params configures the wake model.
type Params struct {
	WakeDeficit     float64 // lee velocity deficit of a very tall obstacle, (0, 1]
	WakeHeightScale float64 // m, obstacle height at which the deficit reaches ~63% of WakeDeficit
	WakeRecovery    float64 // wake e-folding length in obstacle heights
	CornerGain      float64 // speed-up at the edge of a blocked lateral neighbour
	MaxDeflection   float64 // rad
	Tolerance       float64 // m/s, convergence threshold on the per-cell velocity change
	MaxPasses       int
	Workers         int // 0 means GOMAXPROCS
}

// DefaultParams returns the calibrated wake model.
func DefaultParams() Params {
	return Params{
		WakeDeficit:     0.8,
		WakeHeightScale: 10,
		WakeRecovery:    3,
		CornerGain:      0.35,
		MaxDeflection:   0.35,
		Tolerance:       1e-3,
		MaxPasses:       400,
	}
}

// Validate checks that p keeps speeds bounded.
func (p Params) Validate() error {
	var errs []error
	if !(p.WakeDeficit > 0 && p.WakeDeficit <= 1) {
		errs = append(errs, fmt.Errorf("wake deficit %g outside (0, 1]", p.WakeDeficit))
	}
	if !(p.WakeHeightScale > 0) || !(p.WakeRecovery > 0) {
		errs = append(errs, errors.New("wake height scale and recovery must be positive"))
	}
	if !(p.CornerGain >= 0) {
		errs = append(errs, fmt.Errorf("corner gain %g must be non-negative", p.CornerGain))
	}
	if !(p.MaxDeflection >= 0 && p.MaxDeflection < math.Pi/2) {
		errs = append(errs, fmt.Errorf("max deflection %g outside [0, pi/2)", p.MaxDeflection))
	}
	if !(p.Tolerance > 0) {
		errs = append(errs, fmt.Errorf("tolerance %g must be positive", p.Tolerance))
	}
	if p.MaxPasses <= 0 {
		errs = append(errs, fmt.Errorf("max passes %d must be positive", p.MaxPasses))
	}
	if len(errs) > 0 {
		return fmt.Errorf("wind params: %w", errors.Join(errs...))
	}
	return nil
}

// MaxAmplification is the upper bound of local speed over free-stream speed.
func (p Params) MaxAmplification() float64 { return 1 + p.CornerGain }

// deficit returns the lee deficit cast by an obstacle of height h.
func (p Params) deficit(h float64) float64 {
	return p.WakeDeficit * (1 - math.Exp(-h/p.WakeHeightScale))
}
