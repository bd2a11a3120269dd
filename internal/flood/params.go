package flood

import (
	"errors"
	"fmt"
	"math"
)

// gravity is standard gravitational acceleration (m/s²).
const gravity = 9.80665

// Boundary selects the condition applied on the domain edge.
type Boundary int

const (
	// BoundaryOpen lets water leave where the terrain falls toward the edge.
	BoundaryOpen Boundary = iota
	// BoundaryClosed makes the domain edge a wall.
	BoundaryClosed
)

// Losses converts gross rainfall into the rate that reaches the surface.
// The zero value applies no losses.
type Losses struct {
	InfiltrationMMH   float64
	DrainageMMH       float64
	RunoffCoefficient float64
}

// UrbanLosses returns the loss model of a sewered urban catchment: soil
// infiltration, storm drain capacity, then a runoff coefficient on the excess.
func UrbanLosses() Losses {
	return Losses{InfiltrationMMH: 8, DrainageMMH: 40, RunoffCoefficient: 0.75}
}

// Effective returns the surface rainfall rate (mm/h) for a gross rate.
func (l Losses) Effective(rainMMH float64) float64 {
	if l == (Losses{}) {
		return rainMMH
	}
	excess := math.Max(0, rainMMH-l.InfiltrationMMH)
	excess = math.Max(0, excess-l.DrainageMMH)
	coeff := l.RunoffCoefficient
	if coeff <= 0 {
		coeff = 1
	}
	return excess * coeff
}

// Params configures the flood solver.
type Params struct {
	ManningN        float64 // Manning roughness (s/m^1/3)
	Courant         float64 // Courant number, at most 0.5
	MaxTimeStep     float64 // s
	MaxSteps        int     // hard step cap
	SteadyTolerance float64 // relative stored-volume change that counts as steady
	PostStormHours  float64 // simulated drain time after rainfall stops
	DryDepth        float64 // m, faces shallower than this carry no flow
	WetDepth        float64 // m, cells deeper than this count as flooded
	RiskDepth       float64 // m, cells deeper than this count as a risk zone
	Boundary        Boundary
	Losses          Losses
	Workers         int // 0 means GOMAXPROCS
}

// DefaultParams returns a conservative configuration with no rainfall losses.
func DefaultParams() Params {
	return Params{
		ManningN:        0.035,
		Courant:         0.5,
		MaxTimeStep:     10,
		MaxSteps:        200_000,
		SteadyTolerance: 1e-7,
		DryDepth:        1e-4,
		WetDepth:        0.01,
		RiskDepth:       0.1,
		Boundary:        BoundaryOpen,
	}
}

// Validate checks that p describes a stable configuration.
func (p Params) Validate() error {
	var errs []error
	if !(p.ManningN > 0) {
		errs = append(errs, fmt.Errorf("manning n %g must be positive", p.ManningN))
	}
	if !(p.Courant > 0 && p.Courant <= 0.5) {
		errs = append(errs, fmt.Errorf("courant number %g outside (0, 0.5]", p.Courant))
	}
	if !(p.MaxTimeStep > 0) {
		errs = append(errs, fmt.Errorf("max time step %g must be positive", p.MaxTimeStep))
	}
	if p.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("max steps %d must be positive", p.MaxSteps))
	}
	if p.SteadyTolerance < 0 || p.PostStormHours < 0 {
		errs = append(errs, errors.New("steady tolerance and post-storm hours must be non-negative"))
	}
	if !(p.DryDepth > 0) || p.WetDepth < p.DryDepth || p.RiskDepth < p.WetDepth {
		errs = append(errs, errors.New("depth thresholds must satisfy 0 < dry <= wet <= risk"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("flood params: %w", errors.Join(errs...))
	}
	return nil
}
