package assembler

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// Summary is the run-level statistics document.
type Summary struct {
	RunID         string                `json:"run_id"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
	Domain        domain.DomainInfo     `json:"domain"`
	Location      string                `json:"location,omitempty"`
	ReferenceWind string                `json:"reference_wind"`
	Counts        map[domain.Status]int `json:"counts"`
	Flood         *FloodStats           `json:"flood,omitempty"`
	Wind          *WindStats            `json:"wind,omitempty"`
	Thermal       *ThermalStats         `json:"thermal,omitempty"`
	Scenarios     []ScenarioStatus      `json:"scenarios"`
}

// ScenarioStatus is the status line of one scenario in the run summary.
type ScenarioStatus struct {
	Module     domain.Module      `json:"module"`
	Key        string             `json:"key"`
	Name       string             `json:"name"`
	Status     domain.Status      `json:"status"`
	Error      string             `json:"error,omitempty"`
	Diagnostic *domain.Diagnostic `json:"diagnostic,omitempty"`
	DurationMS int64              `json:"duration_ms"`
	Iterations int                `json:"iterations,omitempty"`
}

// FloodStats aggregates the succeeded flood scenarios.
type FloodStats struct {
	Succeeded        int     `json:"succeeded"`
	MaxDepthM        float64 `json:"max_depth_m"`
	MaxDepthScenario string  `json:"max_depth_scenario"`
	MeanMaxDepthM    float64 `json:"mean_max_depth_m"`
	P95WetDepthM     float64 `json:"p95_wet_depth_m"` // over the wet cells of the deepest scenario
	RiskZoneCells    int     `json:"risk_zone_cells"` // largest over scenarios
	BuildingsAtRisk  int     `json:"buildings_at_risk"`
}

// WindStats aggregates the succeeded wind scenarios.
type WindStats struct {
	Succeeded        int     `json:"succeeded"`
	MaxSpeedMS       float64 `json:"max_speed_ms"`
	MaxSpeedScenario string  `json:"max_speed_scenario"`
	MeanSpeedMS      float64 `json:"mean_speed_ms"`
	P95PedestrianMS  float64 `json:"p95_pedestrian_speed_ms"` // fastest scenario
	LowComfortCells  int     `json:"low_comfort_cells"`
	MaxAmplification float64 `json:"max_amplification"`
	Unconverged      int     `json:"unconverged_scenarios"`
}

// ThermalStats aggregates the succeeded thermal scenarios.
type ThermalStats struct {
	Succeeded       int     `json:"succeeded"`
	BestScore       float64 `json:"best_score"`
	WorstScore      float64 `json:"worst_score"`
	MeanScore       float64 `json:"mean_score"`
	MedianScore     float64 `json:"median_score"`
	LowComfortCells int     `json:"low_comfort_cells"`
	MaxUTCI         float64 `json:"max_utci"`
	WindScenario    string  `json:"wind_scenario,omitempty"`
}

// Summary builds the run-level document. Scenarios that did not succeed are
// listed with their status but left out of module statistics.
func (a *Assembler) Summary() Summary {
	report := a.Report()
	sum := Summary{
		RunID:         report.RunID,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Domain:        report.Domain,
		Location:      report.Location,
		ReferenceWind: report.ReferenceWind,
		Counts:        make(map[domain.Status]int),
		Scenarios:     make([]ScenarioStatus, 0, len(report.Results)),
	}

	var floods, winds, thermals []domain.ScenarioResult
	for _, r := range report.Results {
		sum.Counts[r.Status]++
		sum.Scenarios = append(sum.Scenarios, statusOf(r))
		if !r.Succeeded() {
			continue
		}
		switch {
		case r.Flood != nil:
			floods = append(floods, r)
		case r.Wind != nil:
			winds = append(winds, r)
		case r.Thermal != nil:
			thermals = append(thermals, r)
		}
	}
	sum.Flood = a.floodStats(floods)
	sum.Wind = a.windStats(winds)
	sum.Thermal = a.thermalStats(thermals)
	return sum
}

func statusOf(r domain.ScenarioResult) ScenarioStatus {
	s := ScenarioStatus{
		Module:     r.Module(),
		Key:        r.Key(),
		Name:       r.Scenario.Name,
		Status:     r.Status,
		Error:      r.Error,
		Diagnostic: r.Diagnostic,
		Iterations: r.Iterations(),
	}
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		s.DurationMS = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	return s
}

func (a *Assembler) floodStats(rs []domain.ScenarioResult) *FloodStats {
	if len(rs) == 0 {
		return nil
	}
	st := &FloodStats{Succeeded: len(rs), MaxDepthM: -1}
	maxima := make([]float64, 0, len(rs))
	var deepest *domain.FloodResult
	for _, r := range rs {
		s := r.Flood.Summary
		maxima = append(maxima, s.MaxDepthM)
		if s.MaxDepthM > st.MaxDepthM {
			st.MaxDepthM, st.MaxDepthScenario, deepest = s.MaxDepthM, r.Key(), r.Flood
		}
		st.RiskZoneCells = max(st.RiskZoneCells, s.RiskZoneCells)
		st.BuildingsAtRisk = max(st.BuildingsAtRisk, s.BuildingsAtRisk)
	}
	st.MeanMaxDepthM = stat.Mean(maxima, nil)

	var wet []float64
	for i, d := range deepest.Depth {
		if !a.grid.IsObstacle(i) && d > wetDepthM {
			wet = append(wet, d)
		}
	}
	st.P95WetDepthM = quantile(0.95, wet)
	return st
}

func (a *Assembler) windStats(rs []domain.ScenarioResult) *WindStats {
	if len(rs) == 0 {
		return nil
	}
	st := &WindStats{Succeeded: len(rs), MaxSpeedMS: -1}
	means := make([]float64, 0, len(rs))
	var fastest *domain.WindResult
	for _, r := range rs {
		s := r.Wind.Summary
		means = append(means, s.MeanSpeedMS)
		if s.MaxSpeedMS > st.MaxSpeedMS {
			st.MaxSpeedMS, st.MaxSpeedScenario, fastest = s.MaxSpeedMS, r.Key(), r.Wind
		}
		st.LowComfortCells = max(st.LowComfortCells, s.LowComfortCells)
		st.MaxAmplification = math.Max(st.MaxAmplification, s.MaxAmplification)
		if !s.Converged {
			st.Unconverged++
		}
	}
	st.MeanSpeedMS = stat.Mean(means, nil)

	ped := make([]float64, 0, len(fastest.Speed))
	for i, s := range fastest.Speed {
		if !a.grid.IsObstacle(i) {
			ped = append(ped, pedestrianSpeed(s))
		}
	}
	st.P95PedestrianMS = quantile(0.95, ped)
	return st
}

func (a *Assembler) thermalStats(rs []domain.ScenarioResult) *ThermalStats {
	if len(rs) == 0 {
		return nil
	}
	st := &ThermalStats{Succeeded: len(rs), WorstScore: math.Inf(1), MaxUTCI: math.Inf(-1)}
	means := make([]float64, 0, len(rs))
	for _, r := range rs {
		s := r.Thermal.Summary
		means = append(means, s.MeanScore)
		st.BestScore = math.Max(st.BestScore, s.BestScore)
		st.WorstScore = math.Min(st.WorstScore, s.WorstScore)
		st.MaxUTCI = math.Max(st.MaxUTCI, s.MaxUTCI)
		st.LowComfortCells = max(st.LowComfortCells, s.LowComfortCells)
		st.WindScenario = s.WindScenario
	}
	st.MeanScore = stat.Mean(means, nil)
	st.MedianScore = quantile(0.5, means)
	return st
}

// quantile returns the empirical p-quantile of xs, or 0 for no samples. xs is
// sorted in place.
func quantile(p float64, xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sort.Float64s(xs)
	return stat.Quantile(p, stat.Empirical, xs, nil)
}
