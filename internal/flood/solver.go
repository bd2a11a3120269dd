// Package flood implements the hydraulic solver: an explicit local inertial
// approximation of the 2D shallow-water equations over the grid domain
// (Bates et al. 2010; de Almeida & Bates 2013).
package flood

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// StepObserver is called after every completed time step with the current
// depth field. The slice is owned by the solver and must not be retained.
type StepObserver func(step int, elapsed float64, depth []float64)

// Option configures a Solver.
type Option func(*Solver)

// WithStepObserver installs a per-step callback.
func WithStepObserver(fn StepObserver) Option {
	return func(s *Solver) { s.observer = fn }
}

// Solver runs flood scenarios. It holds no per-run state and is safe for
// concurrent use.
type Solver struct {
	params   Params
	logger   *slog.Logger
	observer StepObserver
}

// NewSolver creates a flood solver.
func NewSolver(params Params, logger *slog.Logger, opts ...Option) (*Solver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Solver{params: params, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the solver configuration.
func (s *Solver) Params() Params { return s.params }

// Run simulates rainfall f over g until the storm horizon, a steady state or
// the step cap, whichever comes first.
func (s *Solver) Run(ctx context.Context, g *domain.Grid, f domain.FloodForcing) (*domain.FloodResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	p := s.params
	st := newState(g, p)

	effective := p.Losses.Effective(f.RainfallMMH)
	rainRate := effective / 1000 / 3600 // m/s
	stormEnd := f.DurationH * 3600
	horizon := stormEnd + p.PostStormHours*3600

	var (
		elapsed   float64
		step      int
		prevVol   float64
		steady    bool
		truncated bool
	)
	for elapsed < horizon {
		if step >= p.MaxSteps {
			truncated = true
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("flood run cancelled at step %d: %w", step, err)
		}
		step++

		dt := st.timeStep()
		last := elapsed+dt >= horizon
		if last {
			dt = horizon - elapsed
		}
		rainDt := math.Max(0, math.Min(dt, stormEnd-elapsed))

		st.updateFluxes(dt)
		st.limitOutflow(dt)
		if err := st.updateDepth(step, dt, rainRate*rainDt); err != nil {
			return nil, err
		}

		if last {
			elapsed = horizon
		} else {
			elapsed += dt
		}
		if s.observer != nil {
			s.observer(step, elapsed, st.depth)
		}

		// With a drain phase requested, a balance between rain and outflow
		// during the storm does not end the run.
		vol := st.volume()
		drainPending := p.PostStormHours > 0 && elapsed < stormEnd
		if step > 1 && !drainPending && math.Abs(vol-prevVol) <= p.SteadyTolerance*math.Max(vol, 1e-12) {
			steady = true
			break
		}
		prevVol = vol
	}

	if truncated {
		s.logger.Warn("flood run hit step cap",
			"max_steps", p.MaxSteps, "simulated_s", elapsed, "horizon_s", horizon)
	}

	res := summarize(g, st, p)
	res.Summary.EffectiveRainfallMMH = effective
	res.Summary.Steps = step
	res.Summary.SimulatedSeconds = elapsed
	res.Summary.Steady = steady
	res.Summary.Truncated = truncated

	s.logger.Debug("flood run finished",
		"rainfall_mm_h", f.RainfallMMH,
		"steps", step,
		"steady", steady,
		"max_depth_m", res.Summary.MaxDepthM,
	)
	return res, nil
}
