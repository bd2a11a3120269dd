package wind

import (
	"math"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

const (
	airDensity = 1.225 // kg/m³

	cpWindward = 0.8
	cpLeeward  = -0.5
	cpSide     = -0.7

	// Cells slower than this fraction of the free stream count as sheltered.
	shelterRatio = 0.5
	// Pedestrian speed from which a cell counts as low comfort.
	lowComfortMS = 6.0
)

// DirectionalFactor returns the exposure multiplier of an inlet direction:
// streets aligned with the cardinal directions channel wind along them.
func DirectionalFactor(directionDeg float64) float64 {
	d := domain.NormalizeDirection(directionDeg)
	off := math.Mod(d, 90)
	off = math.Min(off, 90-off)
	switch {
	case off <= 15:
		return 1.15
	case off <= 30:
		return 1.05
	}
	return 0.9
}

// DynamicPressure returns ½ρv² in Pa.
func DynamicPressure(speed float64) float64 {
	return 0.5 * airDensity * speed * speed
}

// PedestrianSpeed converts a reference-height speed to pedestrian height.
func PedestrianSpeed(speed float64) float64 {
	return domain.ProfileSpeed(speed, domain.ReferenceHeightM, domain.PedestrianHeightM)
}

func summarize(g *domain.Grid, st *field, f domain.WindForcing) *domain.WindResult {
	n := g.Len()
	res := &domain.WindResult{
		VelocityX: append([]float64(nil), st.vx...),
		VelocityY: append([]float64(nil), st.vy...),
		Speed:     make([]float64, n),
		Comfort:   make([]domain.WindComfort, n),
	}
	sum := &res.Summary
	sum.ComfortCounts = make(map[domain.WindComfort]int)

	var total, totalPed float64
	open := 0
	for i := 0; i < n; i++ {
		if g.IsObstacle(i) {
			continue
		}
		open++
		s := math.Hypot(res.VelocityX[i], res.VelocityY[i])
		ped := PedestrianSpeed(s)
		c := domain.ClassifyPedestrianWind(ped)
		res.Speed[i] = s
		res.Comfort[i] = c

		total += s
		totalPed += ped
		sum.MaxSpeedMS = math.Max(sum.MaxSpeedMS, s)
		sum.MaxPedestrianSpeedMS = math.Max(sum.MaxPedestrianSpeedMS, ped)
		sum.ComfortCounts[c]++
		if ped >= lowComfortMS {
			sum.LowComfortCells++
		}
		if s < shelterRatio*f.SpeedMS {
			sum.ShelteredCells++
		}
	}
	if open > 0 {
		sum.MeanSpeedMS = total / float64(open)
		sum.MeanPedestrianMS = totalPed / float64(open)
	}
	sum.MaxAmplification = sum.MaxSpeedMS / f.SpeedMS

	sum.DirectionalFactor = DirectionalFactor(f.DirectionDeg)
	q := DynamicPressure(f.SpeedMS * sum.DirectionalFactor)
	sum.WindwardPressurePa = cpWindward * q
	sum.LeewardPressurePa = cpLeeward * q
	sum.SidePressurePa = cpSide * q

	res.Field = &domain.WindField{
		HeightM: domain.ReferenceHeightM,
		East:    res.VelocityX,
		North:   res.VelocityY,
	}
	return res
}
