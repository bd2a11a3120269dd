// Command validate performs integrity checks on the output directory written
// by hazardsim: the run summary, the per-scenario documents and the GeoJSON
// collections. It verifies presence, cross-document consistency and the
// physical bounds every published field must satisfy. With -self-check it
// also runs the analytic reference cases through the pipeline first.
//
// Usage:
//
//	go run ./cmd/validate -out out
//	go run ./cmd/validate -out out -self-check
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hazard-sim/internal/assembler"
	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/flood"
	"github.com/couchcryptid/hazard-sim/internal/observability"
	"github.com/couchcryptid/hazard-sim/internal/pipeline"
	"github.com/couchcryptid/hazard-sim/internal/thermal"
	"github.com/couchcryptid/hazard-sim/internal/wind"
)

// frozenAt is the clock of the self-check run.
var frozenAt = time.Date(2026, time.June, 21, 12, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	outDir := flag.String("out", "", "hazardsim output directory to validate")
	selfCheck := flag.Bool("self-check", false, "run the analytic reference cases before validating")
	flag.Parse()

	if *outDir == "" && !*selfCheck {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*outDir, *selfCheck); code != 0 {
		os.Exit(code)
	}
}

func run(outDir string, selfCheck bool) int {
	fmt.Println("=== Hazard Simulation Output Validation ===")
	fmt.Println()

	var phases []*phase
	if selfCheck {
		phases = append(phases, validateReferenceCases())
	}

	var (
		sum  assembler.Summary
		docs map[string]scenarioDoc
	)
	if outDir != "" {
		var err error
		sum, err = loadJSON[assembler.Summary](filepath.Join(outDir, "summary.json"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load summary: %v\n", err)
			return 1
		}
		var docPhase *phase
		docs, docPhase = loadDocuments(outDir, sum)
		phases = append(phases,
			validateSummary(sum),
			docPhase,
			validateDocuments(sum, docs),
			validateCollections(outDir, sum, docs),
		)
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	if outDir != "" {
		fmt.Println()
		fmt.Printf("Run %s: %d scenarios, %d documents\n", sum.RunID, len(sum.Scenarios), len(docs))
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// scenarioDoc is a scenario document as published; the forcing and summary
// stay raw because their shape depends on the module.
type scenarioDoc struct {
	RunID   string          `json:"run_id"`
	Module  domain.Module   `json:"module"`
	Key     string          `json:"key"`
	Name    string          `json:"name"`
	Status  domain.Status   `json:"status"`
	Error   string          `json:"error"`
	Forcing json.RawMessage `json:"forcing"`
	Summary json.RawMessage `json:"summary"`
}

func loadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(data, &v)
	return v, err
}

func docKey(m domain.Module, key string) string { return string(m) + "/" + key }

func loadDocuments(outDir string, sum assembler.Summary) (map[string]scenarioDoc, *phase) {
	p := &phase{name: "Phase 2: Scenario document presence"}
	docs := make(map[string]scenarioDoc, len(sum.Scenarios))
	for _, s := range sum.Scenarios {
		path := filepath.Join(outDir, string(s.Module), s.Key+".json")
		doc, err := loadJSON[scenarioDoc](path)
		if err != nil {
			p.errorf("%s/%s: %v", s.Module, s.Key, err)
			continue
		}
		docs[docKey(s.Module, s.Key)] = doc
	}
	return docs, p
}

// ── Phase 1: Summary integrity ──

func validateSummary(sum assembler.Summary) *phase {
	p := &phase{name: "Phase 1: Summary integrity"}

	if sum.RunID == "" {
		p.errorf("summary has no run_id")
	}
	if sum.FinishedAt.Before(sum.StartedAt) {
		p.errorf("run finished %s before it started %s", sum.FinishedAt, sum.StartedAt)
	}
	if len(sum.Scenarios) == 0 {
		p.errorf("summary lists no scenarios")
	}

	seen := map[string]bool{}
	counts := map[domain.Status]int{}
	for _, s := range sum.Scenarios {
		k := docKey(s.Module, s.Key)
		if seen[k] {
			p.errorf("scenario %s listed twice", k)
		}
		seen[k] = true
		counts[s.Status]++

		switch s.Status {
		case domain.StatusSucceeded:
			if s.Error != "" {
				p.errorf("%s succeeded but carries error %q", k, s.Error)
			}
		case domain.StatusFailed, domain.StatusRejected, domain.StatusCancelled:
			if s.Error == "" {
				p.errorf("%s is %s without an error", k, s.Status)
			}
		default:
			p.errorf("%s has unknown status %q", k, s.Status)
		}
	}
	for status, n := range counts {
		if sum.Counts[status] != n {
			p.errorf("counts[%s] = %d, scenario list has %d", status, sum.Counts[status], n)
		}
	}

	if sum.Thermal != nil && sum.ReferenceWind == "" {
		p.errorf("thermal statistics present without a reference wind scenario")
	}
	return p
}

// ── Phase 3: Document consistency ──

func validateDocuments(sum assembler.Summary, docs map[string]scenarioDoc) *phase {
	p := &phase{name: "Phase 3: Document consistency"}

	for _, s := range sum.Scenarios {
		k := docKey(s.Module, s.Key)
		doc, ok := docs[k]
		if !ok {
			continue // reported in phase 2
		}
		if doc.RunID != sum.RunID {
			p.errorf("%s: run_id %q, summary has %q", k, doc.RunID, sum.RunID)
		}
		if doc.Module != s.Module || doc.Key != s.Key {
			p.errorf("%s: document names %s/%s", k, doc.Module, doc.Key)
		}
		if doc.Status != s.Status {
			p.errorf("%s: status %s, summary has %s", k, doc.Status, s.Status)
		}
		if domain.Slug(doc.Name) != doc.Key {
			p.errorf("%s: key does not match name %q", k, doc.Name)
		}
		hasSummary := len(doc.Summary) > 0 && string(doc.Summary) != "null"
		if s.Status == domain.StatusSucceeded && !hasSummary {
			p.errorf("%s: succeeded without a summary", k)
		}
		if s.Status != domain.StatusSucceeded && hasSummary {
			p.errorf("%s: %s but carries a summary", k, s.Status)
		}
	}
	return p
}

// ── Phase 4: GeoJSON collections ──

// collectionCheck holds what the document fixes about a collection.
type collectionCheck struct {
	maxDepth float64 // flood
	maxSpeed float64 // wind: inlet speed times the corner gain bound
}

func validateCollections(outDir string, sum assembler.Summary, docs map[string]scenarioDoc) *phase {
	p := &phase{name: "Phase 4: GeoJSON collections"}

	for _, s := range sum.Scenarios {
		k := docKey(s.Module, s.Key)
		path := filepath.Join(outDir, string(s.Module), s.Key+".geojson")
		data, err := os.ReadFile(path)

		if s.Status != domain.StatusSucceeded {
			if err == nil {
				p.errorf("%s: %s scenario has a collection", k, s.Status)
			}
			continue
		}
		if err != nil {
			p.errorf("%s: %v", k, err)
			continue
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			p.errorf("%s: decode: %v", k, err)
			continue
		}

		check, err := checkFor(s.Module, docs[k])
		if err != nil {
			p.errorf("%s: %v", k, err)
			continue
		}
		for i, f := range fc.Features {
			if _, ok := f.Geometry.(orb.Point); !ok {
				p.errorf("%s feature %d: geometry %T, want Point", k, i, f.Geometry)
				continue
			}
			if msg := checkFeature(s.Module, f.Properties, check); msg != "" {
				p.errorf("%s feature %d (%v,%v): %s", k, i, f.Properties["x"], f.Properties["y"], msg)
			}
		}
	}
	return p
}

func checkFor(m domain.Module, doc scenarioDoc) (collectionCheck, error) {
	var c collectionCheck
	switch m {
	case domain.ModuleFlood:
		var s domain.FloodSummary
		if err := json.Unmarshal(doc.Summary, &s); err != nil {
			return c, fmt.Errorf("decode flood summary: %w", err)
		}
		c.maxDepth = s.MaxDepthM
	case domain.ModuleWind:
		var f domain.WindForcing
		if err := json.Unmarshal(doc.Forcing, &f); err != nil {
			return c, fmt.Errorf("decode wind forcing: %w", err)
		}
		c.maxSpeed = f.SpeedMS * wind.DefaultParams().MaxAmplification()
	}
	return c, nil
}

const slack = 1e-9

func checkFeature(m domain.Module, props geojson.Properties, c collectionCheck) string {
	switch m {
	case domain.ModuleFlood:
		d := props.MustFloat64("depth_m", math.NaN())
		if !(d > 0) || d > c.maxDepth+slack {
			return fmt.Sprintf("depth_m %g outside (0, %g]", d, c.maxDepth)
		}
	case domain.ModuleWind:
		v := props.MustFloat64("speed_ms", math.NaN())
		if !(v >= 0) || v > c.maxSpeed+slack {
			return fmt.Sprintf("speed_ms %g outside [0, %g]", v, c.maxSpeed)
		}
		if pv := props.MustFloat64("pedestrian_speed_ms", math.NaN()); !(pv >= 0) || pv > v+slack {
			return fmt.Sprintf("pedestrian_speed_ms %g outside [0, %g]", pv, v)
		}
	case domain.ModuleThermal:
		sc := props.MustFloat64("score", math.NaN())
		if !(sc >= 0) || sc > 5+slack {
			return fmt.Sprintf("score %g outside [0, 5]", sc)
		}
		if ppd := props.MustFloat64("ppd", math.NaN()); !(ppd >= 5-slack) || ppd > 100+slack {
			return fmt.Sprintf("ppd %g outside [5, 100]", ppd)
		}
	}
	return ""
}

// ── Phase 0: Reference cases ──

// validateReferenceCases runs the analytic cases on a flat open domain with
// a frozen clock: uniform ponding for rain, free stream for wind and the
// mild/hot comfort anchors.
func validateReferenceCases() *phase {
	p := &phase{name: "Phase 0: Reference cases (self-check)"}

	domain.SetClock(clockwork.NewFakeClockAt(frozenAt))
	defer domain.SetClock(nil)

	const n = 20
	g, err := domain.NewGrid(domain.GridSpec{
		Width: n, Height: n, CellSize: 5,
		Center:    domain.GeoRef{Lat: 54.1, Lng: 22.93},
		Elevation: make([]float64, n*n),
		Obstacle:  make([]float64, n*n),
	})
	if err != nil {
		p.errorf("build grid: %v", err)
		return p
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fp := flood.DefaultParams()
	fp.Boundary = flood.BoundaryClosed
	fs, err1 := flood.NewSolver(fp, logger)
	ws, err2 := wind.NewSolver(wind.DefaultParams(), logger)
	ts, err3 := thermal.NewSolver(thermal.DefaultParams(), logger)
	if err := errors.Join(err1, err2, err3); err != nil {
		p.errorf("build solvers: %v", err)
		return p
	}

	cat := domain.Catalog{Scenarios: []domain.Scenario{
		{Name: "Flat ponding", Forcing: domain.FloodForcing{RainfallMMH: 50, DurationH: 1}},
		{Name: "Free stream", Forcing: domain.WindForcing{SpeedMS: 5, DirectionDeg: 270}},
		{Name: "Mild", Forcing: domain.ThermalForcing{AirTempC: 20, RelHumidity: 50}},
		{Name: "Hot", Forcing: domain.ThermalForcing{AirTempC: 38, RelHumidity: 50}},
	}}
	pl := pipeline.New(fs, ws, ts, logger, observability.NewMetricsForTesting())
	a, err := pl.Run(context.Background(), g, cat)
	if err != nil {
		p.errorf("run: %v", err)
		return p
	}

	report := a.Report()
	if !report.StartedAt.Equal(frozenAt) || !report.FinishedAt.Equal(frozenAt) {
		p.errorf("run timestamps %s..%s, want the frozen clock %s", report.StartedAt, report.FinishedAt, frozenAt)
	}
	for _, r := range report.Results {
		if !r.Succeeded() {
			p.errorf("%s/%s: %s: %s", r.Module(), r.Key(), r.Status, r.Error)
		}
	}
	if !p.passed() {
		return p
	}

	if r, _ := a.Result(domain.ModuleFlood, "flat_ponding"); r.Flood != nil {
		for i, d := range r.Flood.Depth {
			if math.Abs(d-0.05) > 1e-9 {
				p.errorf("flat ponding: cell %d depth %g, want 0.05", i, d)
				break
			}
		}
	}
	if r, _ := a.Result(domain.ModuleWind, "free_stream"); r.Wind != nil {
		for i, v := range r.Wind.Speed {
			if math.Abs(v-5) > 1e-6 {
				p.errorf("free stream: cell %d speed %g, want 5", i, v)
				break
			}
		}
		if amp := r.Wind.Summary.MaxAmplification; amp > ws.MaxAmplification()+slack {
			p.errorf("free stream: amplification %g above bound %g", amp, ws.MaxAmplification())
		}
	}
	mild, _ := a.Result(domain.ModuleThermal, "mild")
	hot, _ := a.Result(domain.ModuleThermal, "hot")
	if mild.Thermal != nil && mild.Thermal.Summary.MeanScore < 3.5 {
		p.errorf("mild anchor: mean score %.2f, want near 5", mild.Thermal.Summary.MeanScore)
	}
	if hot.Thermal != nil && hot.Thermal.Summary.BestScore > 0.5 {
		p.errorf("hot anchor: best score %.2f, want near 0", hot.Thermal.Summary.BestScore)
	}
	return p
}
