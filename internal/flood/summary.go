package flood

import (
	"math"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// Impact model constants.
const (
	lossPerBuildingPLN   = 50_000.0
	lossPerCubicMetre    = 10.0
	residentsPerBuilding = 3
	evacuationDepthM     = 0.5
)

// summarize converts the terminal state into a result with cell-centred
// discharges, per-cell risk classes and scalar statistics.
func summarize(g *domain.Grid, st *state, p Params) *domain.FloodResult {
	n := g.Len()
	res := &domain.FloodResult{
		Depth:      append([]float64(nil), st.depth...),
		DischargeX: make([]float64, n),
		DischargeY: make([]float64, n),
		Risk:       make([]domain.FloodRisk, n),
	}
	sum := &res.Summary

	var wetDepth float64
	atRisk := make(map[int]struct{})
	for i := 0; i < n; i++ {
		if g.IsObstacle(i) {
			continue
		}
		x, y := g.XY(i)
		qx := 0.5 * (st.qx[st.fx(x, y)] + st.qx[st.fx(x+1, y)])
		qy := -0.5 * (st.qy[st.fy(x, y)] + st.qy[st.fy(x, y+1)])
		res.DischargeX[i], res.DischargeY[i] = qx, qy

		d := res.Depth[i]
		res.Risk[i] = domain.ClassifyDepth(d)
		sum.TotalVolumeM3 += d
		sum.MaxDepthM = math.Max(sum.MaxDepthM, d)
		if d <= p.WetDepth {
			continue
		}
		sum.FloodedCells++
		wetDepth += d
		if d > p.RiskDepth {
			sum.RiskZoneCells++
		}
		sum.MaxVelocityMS = math.Max(sum.MaxVelocityMS, math.Hypot(qx, qy)/d)
		g.Neighbors4(i, func(j int) {
			if id := g.BuildingID(j); id >= 0 {
				atRisk[id] = struct{}{}
			}
		})
	}

	area := g.CellArea()
	sum.TotalVolumeM3 *= area
	sum.FloodedAreaM2 = float64(sum.FloodedCells) * area
	if sum.FloodedCells > 0 {
		sum.MeanWetDepthM = wetDepth / float64(sum.FloodedCells)
	}
	sum.BuildingsAtRisk = len(atRisk)
	sum.RiskLevel = domain.ClassifyDepth(sum.MaxDepthM)
	sum.OutflowVolumeM3 = st.outflowM3
	sum.RainVolumeM3 = st.rainM3
	sum.Impact = domain.Impact{
		EconomicLossPLN:    float64(sum.BuildingsAtRisk)*lossPerBuildingPLN + sum.TotalVolumeM3*lossPerCubicMetre,
		AffectedPopulation: sum.BuildingsAtRisk * residentsPerBuilding,
		EvacuationNeeded:   sum.MaxDepthM > evacuationDepthM,
	}
	return res
}
