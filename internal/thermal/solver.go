// Package thermal evaluates outdoor thermal comfort per cell from ambient
// conditions, building shade and a local wind field: ISO 7730 PMV/PPD, a
// regression UTCI and a 0–5 comfort score.
package thermal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/hazard-sim/internal/compute"
	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// Params configures the thermal solver.
type Params struct {
	Met             float64 // metabolic rate (met)
	Clo             float64 // clothing insulation when the scenario names no season
	MinAirSpeed     float64 // m/s, floor of the relative air speed seen by PMV
	LowComfortScore float64 // cells scoring below this count as low comfort
	Workers         int     // 0 means GOMAXPROCS
}

// DefaultParams models a walking pedestrian.
func DefaultParams() Params {
	return Params{
		Met:             WalkingMet,
		Clo:             DefaultClo,
		MinAirSpeed:     0.1,
		LowComfortScore: 2.0,
	}
}

// Validate checks p.
func (p Params) Validate() error {
	var errs []error
	if !(p.Met > 0) {
		errs = append(errs, fmt.Errorf("metabolic rate %g must be positive", p.Met))
	}
	if !(p.Clo >= 0) {
		errs = append(errs, fmt.Errorf("clothing insulation %g must be non-negative", p.Clo))
	}
	if !(p.MinAirSpeed > 0) {
		errs = append(errs, fmt.Errorf("minimum air speed %g must be positive", p.MinAirSpeed))
	}
	if !(p.LowComfortScore >= 0 && p.LowComfortScore <= 5) {
		errs = append(errs, fmt.Errorf("low comfort score %g outside [0, 5]", p.LowComfortScore))
	}
	if len(errs) > 0 {
		return fmt.Errorf("thermal params: %w", errors.Join(errs...))
	}
	return nil
}

// Solver runs thermal scenarios and is safe for concurrent use.
type Solver struct {
	params Params
	logger *slog.Logger
}

// NewSolver creates a thermal solver.
func NewSolver(params Params, logger *slog.Logger) (*Solver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Solver{params: params, logger: logger}, nil
}

// Params returns the solver configuration.
func (s *Solver) Params() Params { return s.params }

// Run evaluates comfort over g for ambient conditions f and the local wind
// field. The wind field is required; a missing or mismatched one fails with
// domain.ErrMissingWindField before any cell is evaluated.
func (s *Solver) Run(ctx context.Context, g *domain.Grid, f domain.ThermalForcing, wind *domain.WindField) (*domain.ThermalResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := wind.Check(g); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("thermal run cancelled: %w", err)
	}

	p := s.params
	clo := ClothingFor(f.Season, p.Clo)
	elevation, azimuth := SunPosition(g.Center().Lat, f.Season.Declination())
	shaded := Shadows(g, elevation, azimuth, p.Workers)

	n := g.Len()
	res := &domain.ThermalResult{
		Score:  make([]float64, n),
		PMV:    make([]float64, n),
		PPD:    make([]float64, n),
		UTCI:   make([]float64, n),
		MRT:    make([]float64, n),
		Shaded: shaded,
		Stress: make([]domain.ThermalStress, n),
	}

	var failures compute.Band[*domain.InstabilityError]
	compute.Rows(p.Workers, g.Height(), func(y0, y1 int) {
		var first *domain.InstabilityError
		for y := y0; y < y1; y++ {
			for x := 0; x < g.Width(); x++ {
				i := g.Index(x, y)
				if g.IsObstacle(i) {
					continue
				}
				ta, rh := Microclimate(g.LandCover(i), f.AirTempC, f.RelHumidity)
				mrt := MRT(ta, f.SolarWm2, shaded[i])
				vPed := math.Max(p.MinAirSpeed, wind.SpeedAt(i, domain.PedestrianHeightM))
				v10 := wind.SpeedAt(i, domain.ReferenceHeightM)

				pmv, err := PMV(ta, mrt, vPed, rh, p.Met, clo)
				if err != nil || math.IsNaN(pmv) || math.IsInf(pmv, 0) {
					if first == nil {
						first = &domain.InstabilityError{Cell: i, X: x, Y: y, Quantity: "pmv", Value: pmv}
					}
					continue
				}
				utci := UTCI(ta, mrt, v10, rh)

				res.MRT[i] = mrt
				res.PMV[i] = pmv
				res.PPD[i] = PPD(pmv)
				res.Score[i] = ComfortScore(pmv)
				res.UTCI[i] = utci
				res.Stress[i] = domain.ClassifyUTCI(utci)
			}
		}
		if first != nil {
			failures.Add(first)
		}
	})

	if parts := failures.Parts(); len(parts) > 0 {
		first := parts[0]
		for _, e := range parts[1:] {
			if e.Cell < first.Cell {
				first = e
			}
		}
		return nil, first
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("thermal run cancelled: %w", err)
	}

	res.Summary = summarize(g, res, p)
	res.Summary.SunElevationDeg = elevation
	res.Summary.Clo = clo
	res.Summary.Met = p.Met
	res.Summary.WindScenario = wind.Scenario

	s.logger.Debug("thermal run finished",
		"air_temp_c", f.AirTempC,
		"wind_scenario", wind.Scenario,
		"mean_score", res.Summary.MeanScore,
		"shaded_cells", res.Summary.ShadedCells,
	)
	return res, nil
}

func summarize(g *domain.Grid, res *domain.ThermalResult, p Params) domain.ThermalSummary {
	sum := domain.ThermalSummary{
		WorstScore:   math.Inf(1),
		MinUTCI:      math.Inf(1),
		MaxUTCI:      math.Inf(-1),
		StressCounts: make(map[domain.ThermalStress]int),
	}
	var score, pmv, ppd, utci float64
	open := 0
	for i := range res.Score {
		if g.IsObstacle(i) {
			continue
		}
		open++
		sc := res.Score[i]
		score += sc
		pmv += res.PMV[i]
		ppd += res.PPD[i]
		utci += res.UTCI[i]
		sum.BestScore = math.Max(sum.BestScore, sc)
		sum.WorstScore = math.Min(sum.WorstScore, sc)
		sum.MinUTCI = math.Min(sum.MinUTCI, res.UTCI[i])
		sum.MaxUTCI = math.Max(sum.MaxUTCI, res.UTCI[i])
		if sc < p.LowComfortScore {
			sum.LowComfortCells++
		}
		if res.Shaded[i] {
			sum.ShadedCells++
		}
		sum.StressCounts[res.Stress[i]]++
	}
	if open == 0 {
		sum.WorstScore, sum.MinUTCI, sum.MaxUTCI = 0, 0, 0
		return sum
	}

	k := float64(open)
	sum.MeanScore = score / k
	sum.MeanPMV = pmv / k
	sum.MeanPPD = ppd / k
	sum.MeanUTCI = utci / k
	sum.MeanPET = PET(sum.MeanPMV)

	best := -1
	for stress, c := range sum.StressCounts {
		if c > best || (c == best && stress < sum.DominantStress) {
			best, sum.DominantStress = c, stress
		}
	}
	return sum
}
