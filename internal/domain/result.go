package domain

import "time"

// Status is the outcome of one scenario run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Diagnostic locates the step and cell where a run became unstable.
type Diagnostic struct {
	Step     int     `json:"step"`
	Cell     int     `json:"cell"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Quantity string  `json:"quantity"`
	Value    float64 `json:"-"`
}

// ScenarioResult is the outcome of one scenario. Exactly one of Flood, Wind
// or Thermal is set when Status is StatusSucceeded.
type ScenarioResult struct {
	Scenario   Scenario
	Status     Status
	Error      string
	Diagnostic *Diagnostic
	StartedAt  time.Time
	FinishedAt time.Time

	Flood   *FloodResult
	Wind    *WindResult
	Thermal *ThermalResult
}

func (r ScenarioResult) Module() Module { return r.Scenario.Module() }
func (r ScenarioResult) Key() string    { return r.Scenario.Key() }

// Succeeded reports whether the result carries solver output.
func (r ScenarioResult) Succeeded() bool { return r.Status == StatusSucceeded }

// Iterations returns the number of solver steps or passes, or 0.
func (r ScenarioResult) Iterations() int {
	switch {
	case r.Flood != nil:
		return r.Flood.Summary.Steps
	case r.Wind != nil:
		return r.Wind.Summary.Passes
	}
	return 0
}

// FloodResult holds the terminal state of a flood run.
type FloodResult struct {
	Depth      []float64   // m
	DischargeX []float64   // m²/s, east positive
	DischargeY []float64   // m²/s, north positive
	Risk       []FloodRisk // per cell
	Summary    FloodSummary
}

// FloodSummary holds scalar statistics of a flood run.
type FloodSummary struct {
	MaxDepthM            float64   `json:"max_depth_m"`
	MeanWetDepthM        float64   `json:"mean_wet_depth_m"`
	TotalVolumeM3        float64   `json:"total_volume_m3"`
	OutflowVolumeM3      float64   `json:"outflow_volume_m3"`
	RainVolumeM3         float64   `json:"rain_volume_m3"`
	FloodedCells         int       `json:"flooded_cells"`
	FloodedAreaM2        float64   `json:"flooded_area_m2"`
	RiskZoneCells        int       `json:"risk_zone_cells"`
	BuildingsAtRisk      int       `json:"buildings_at_risk"`
	MaxVelocityMS        float64   `json:"max_velocity_ms"`
	RiskLevel            FloodRisk `json:"risk_level"`
	EffectiveRainfallMMH float64   `json:"effective_rainfall_mm_h"`
	Steps                int       `json:"steps"`
	SimulatedSeconds     float64   `json:"simulated_seconds"`
	Steady               bool      `json:"steady"`
	Truncated            bool      `json:"truncated"`
	Impact               Impact    `json:"impact"`
}

// Impact is the coarse socio-economic estimate of a flood scenario.
type Impact struct {
	EconomicLossPLN    float64 `json:"economic_loss_pln"`
	AffectedPopulation int     `json:"affected_population"`
	EvacuationNeeded   bool    `json:"evacuation_needed"`
}

// WindResult holds the converged field of a wind run.
type WindResult struct {
	VelocityX []float64 // m/s east, reference height
	VelocityY []float64 // m/s north, reference height
	Speed     []float64
	Comfort   []WindComfort
	Field     *WindField
	Summary   WindSummary
}

// WindSummary holds scalar statistics of a wind run.
type WindSummary struct {
	MaxSpeedMS           float64             `json:"max_speed_ms"`
	MeanSpeedMS          float64             `json:"mean_speed_ms"`
	MaxPedestrianSpeedMS float64             `json:"max_pedestrian_speed_ms"`
	MeanPedestrianMS     float64             `json:"mean_pedestrian_speed_ms"`
	LowComfortCells      int                 `json:"low_comfort_cells"`
	ComfortCounts        map[WindComfort]int `json:"comfort_counts"`
	MaxAmplification     float64             `json:"max_amplification"`
	ShelteredCells       int                 `json:"sheltered_cells"`
	Passes               int                 `json:"passes"`
	Converged            bool                `json:"converged"`
	DirectionalFactor    float64             `json:"directional_factor"`
	WindwardPressurePa   float64             `json:"windward_pressure_pa"`
	LeewardPressurePa    float64             `json:"leeward_pressure_pa"`
	SidePressurePa       float64             `json:"side_pressure_pa"`
}

// ThermalResult holds the per-cell comfort indices of a thermal run.
type ThermalResult struct {
	Score   []float64
	PMV     []float64
	PPD     []float64
	UTCI    []float64
	MRT     []float64
	Shaded  []bool
	Stress  []ThermalStress
	Summary ThermalSummary
}

// ThermalSummary holds scalar statistics of a thermal run.
type ThermalSummary struct {
	BestScore       float64               `json:"best_score"`
	WorstScore      float64               `json:"worst_score"`
	MeanScore       float64               `json:"mean_score"`
	LowComfortCells int                   `json:"low_comfort_cells"`
	MeanPMV         float64               `json:"mean_pmv"`
	MeanPPD         float64               `json:"mean_ppd"`
	MinUTCI         float64               `json:"min_utci"`
	MaxUTCI         float64               `json:"max_utci"`
	MeanUTCI        float64               `json:"mean_utci"`
	MeanPET         float64               `json:"mean_pet"`
	ShadedCells     int                   `json:"shaded_cells"`
	SunElevationDeg float64               `json:"sun_elevation_deg"`
	StressCounts    map[ThermalStress]int `json:"stress_counts"`
	DominantStress  ThermalStress         `json:"dominant_stress"`
	Clo             float64               `json:"clo"`
	Met             float64               `json:"met"`
	WindScenario    string                `json:"wind_scenario"`
}

// RunReport aggregates one orchestrator run over a catalog.
type RunReport struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Domain        DomainInfo
	Location      string
	ReferenceWind string
	Results       []ScenarioResult
}

// Count returns the number of results with status s.
func (r RunReport) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}
