package assembler

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// wetDepthM is the depth above which a flood cell is exported.
const wetDepthM = 0.01

func pedestrianSpeed(s float64) float64 {
	return domain.ProfileSpeed(s, domain.ReferenceHeightM, domain.PedestrianHeightM)
}

// ScenarioDocument is the per-scenario statistics document.
type ScenarioDocument struct {
	RunID      string             `json:"run_id"`
	Module     domain.Module      `json:"module"`
	Key        string             `json:"key"`
	Name       string             `json:"name"`
	Forcing    domain.Forcing     `json:"forcing"`
	Status     domain.Status      `json:"status"`
	Error      string             `json:"error,omitempty"`
	Diagnostic *domain.Diagnostic `json:"diagnostic,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Summary    any                `json:"summary,omitempty"`
	Quantiles  map[string]float64 `json:"quantiles,omitempty"`
}

// ScenarioDocument renders the statistics document of one scenario. Failed
// scenarios carry their status and error but no summary.
func (a *Assembler) ScenarioDocument(m domain.Module, key string) (ScenarioDocument, error) {
	r, err := a.Result(m, key)
	if err != nil {
		return ScenarioDocument{}, err
	}
	a.mu.RLock()
	runID := a.report.RunID
	a.mu.RUnlock()

	doc := ScenarioDocument{
		RunID:      runID,
		Module:     m,
		Key:        key,
		Name:       r.Scenario.Name,
		Forcing:    r.Scenario.Forcing,
		Status:     r.Status,
		Error:      r.Error,
		Diagnostic: r.Diagnostic,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if !r.Succeeded() {
		return doc, nil
	}

	var field []float64
	switch {
	case r.Flood != nil:
		doc.Summary = r.Flood.Summary
		field = a.openValues(r.Flood.Depth, func(v float64) bool { return v > wetDepthM })
		doc.Quantiles = quantiles("depth_m", field)
	case r.Wind != nil:
		doc.Summary = r.Wind.Summary
		field = a.openValues(r.Wind.Speed, nil)
		for i := range field {
			field[i] = pedestrianSpeed(field[i])
		}
		doc.Quantiles = quantiles("pedestrian_speed_ms", field)
	case r.Thermal != nil:
		doc.Summary = r.Thermal.Summary
		field = a.openValues(r.Thermal.Score, nil)
		doc.Quantiles = quantiles("score", field)
	}
	return doc, nil
}

func (a *Assembler) openValues(vs []float64, keep func(float64) bool) []float64 {
	out := make([]float64, 0, len(vs))
	for i, v := range vs {
		if a.grid.IsObstacle(i) || (keep != nil && !keep(v)) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func quantiles(name string, xs []float64) map[string]float64 {
	if len(xs) == 0 {
		return nil
	}
	return map[string]float64{
		name + "_p50": quantile(0.5, xs),
		name + "_p90": quantile(0.9, xs),
		name + "_p99": quantile(0.99, xs),
	}
}

// FeatureCollection renders every stride-th cell of a succeeded scenario in
// each direction as GeoJSON points. Flood collections hold wet cells only;
// wind and thermal collections hold every open cell.
func (a *Assembler) FeatureCollection(m domain.Module, key string, stride int) (*geojson.FeatureCollection, error) {
	r, err := a.Result(m, key)
	if err != nil {
		return nil, err
	}
	if !r.Succeeded() {
		return nil, fmt.Errorf("%w: %s/%s is %s", ErrNoResult, m, key, r.Status)
	}
	if stride < 1 {
		stride = 1
	}

	g := a.grid
	fc := geojson.NewFeatureCollection()
	for y := 0; y < g.Height(); y += stride {
		for x := 0; x < g.Width(); x += stride {
			i := g.Index(x, y)
			if g.IsObstacle(i) {
				continue
			}
			props, ok := cellProperties(r, i)
			if !ok {
				continue
			}
			lat, lng := g.CellLatLng(i)
			f := geojson.NewFeature(orb.Point{lng, lat})
			f.Properties = props
			f.Properties["x"] = x
			f.Properties["y"] = y
			fc.Append(f)
		}
	}
	return fc, nil
}

func cellProperties(r domain.ScenarioResult, i int) (geojson.Properties, bool) {
	switch {
	case r.Flood != nil:
		d := r.Flood.Depth[i]
		if d <= wetDepthM {
			return nil, false
		}
		return geojson.Properties{
			"depth_m":     d,
			"risk":        r.Flood.Risk[i].String(),
			"discharge_x": r.Flood.DischargeX[i],
			"discharge_y": r.Flood.DischargeY[i],
			"velocity_ms": velocity(r.Flood, i),
		}, true
	case r.Wind != nil:
		ve, vn := r.Wind.VelocityX[i], r.Wind.VelocityY[i]
		return geojson.Properties{
			"speed_ms":            r.Wind.Speed[i],
			"pedestrian_speed_ms": pedestrianSpeed(r.Wind.Speed[i]),
			"direction_deg":       domain.MeteorologicalDirection(ve, vn),
			"comfort":             r.Wind.Comfort[i].String(),
		}, true
	case r.Thermal != nil:
		t := r.Thermal
		return geojson.Properties{
			"score":  t.Score[i],
			"pmv":    t.PMV[i],
			"ppd":    t.PPD[i],
			"utci":   t.UTCI[i],
			"mrt":    t.MRT[i],
			"shaded": t.Shaded[i],
			"stress": t.Stress[i].String(),
		}, true
	}
	return nil, false
}

func velocity(f *domain.FloodResult, i int) float64 {
	d := f.Depth[i]
	if d <= 0 {
		return 0
	}
	return math.Hypot(f.DischargeX[i], f.DischargeY[i]) / d
}
