// Package wind computes a steady pedestrian wind field around obstacles with
// an iterative wake model: obstacles cast decaying velocity deficits
// downstream, flanks of blocked cells accelerate, and flow is deflected away
// from the more obstructed side.
package wind

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// PassObserver is called after every pass with the current east and north
// velocity buffers. The slices are owned by the solver and must not be
// retained.
type PassObserver func(pass int, east, north []float64)

// Option configures a Solver.
type Option func(*Solver)

// WithPassObserver installs a per-pass callback.
func WithPassObserver(fn PassObserver) Option {
	return func(s *Solver) { s.observer = fn }
}

// Solver runs wind scenarios and is safe for concurrent use.
type Solver struct {
	params   Params
	logger   *slog.Logger
	observer PassObserver
}

// NewSolver creates a wind solver.
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

// MaxAmplification is the upper bound of local speed over free-stream speed.
func (s *Solver) MaxAmplification() float64 { return s.params.MaxAmplification() }

// Run computes the steady field for inlet wind f over g. Speeds are at the
// 10 m reference height; the returned Field carries the same vectors for the
// thermal solver.
func (s *Solver) Run(ctx context.Context, g *domain.Grid, f domain.WindForcing) (*domain.WindResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	st := newField(g, s.params, f)
	var (
		passes    int
		converged bool
	)
	for passes < s.params.MaxPasses {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("wind run cancelled at pass %d: %w", passes, err)
		}
		passes++
		delta, _, err := st.pass(passes)
		if err != nil {
			return nil, err
		}
		if s.observer != nil {
			s.observer(passes, st.vx, st.vy)
		}
		if delta < s.params.Tolerance {
			converged = true
			break
		}
	}
	if !converged {
		s.logger.Warn("wind run did not converge",
			"max_passes", s.params.MaxPasses, "speed_ms", f.SpeedMS, "direction_deg", f.DirectionDeg)
	}

	res := summarize(g, st, f)
	res.Summary.Passes = passes
	res.Summary.Converged = converged

	s.logger.Debug("wind run finished",
		"speed_ms", f.SpeedMS,
		"direction_deg", f.DirectionDeg,
		"passes", passes,
		"max_speed_ms", res.Summary.MaxSpeedMS,
	)
	return res, nil
}
