package thermal

import (
	"errors"
	"math"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// ErrNotConverged is returned by PMV when the clothing surface temperature
// iteration does not settle.
var ErrNotConverged = errors.New("pmv clothing temperature did not converge")

const (
	// WalkingMet is the metabolic rate of a walking pedestrian.
	WalkingMet = 1.6
	// DefaultClo is the clothing insulation used when no season is given.
	DefaultClo = 1.0

	pmvEpsilon       = 0.00015
	pmvMaxIterations = 150
)

// ClothingFor returns the clothing insulation (clo) worn in season s, or
// fallback when s is unset.
func ClothingFor(s domain.Season, fallback float64) float64 {
	switch s {
	case domain.SeasonWinter:
		return 2.0
	case domain.SeasonSpring:
		return 1.0
	case domain.SeasonSummer:
		return 0.5
	case domain.SeasonAutumn:
		return 1.2
	}
	return fallback
}

// SaturationPressure returns the saturation vapour pressure (kPa) of air at
// ta °C.
func SaturationPressure(ta float64) float64 {
	return math.Exp(16.6536 - 4030.183/(ta+235))
}

// PMV returns the ISO 7730 predicted mean vote for air temperature ta (°C),
// mean radiant temperature tr (°C), relative air speed vel (m/s), relative
// humidity rh (%), metabolic rate met and clothing insulation clo. No external
// work is assumed.
func PMV(ta, tr, vel, rh, met, clo float64) (float64, error) {
	pa := rh * 10 * SaturationPressure(ta) // Pa
	icl := 0.155 * clo                     // m²K/W
	m := met * 58.15                       // W/m²
	mw := m

	fcl := 1.05 + 0.645*icl
	if icl <= 0.078 {
		fcl = 1 + 1.29*icl
	}
	hcf := 12.1 * math.Sqrt(vel)
	taa := ta + 273
	tra := tr + 273

	// Clothing surface temperature by fixed-point iteration.
	tcla := taa + (35.5-ta)/(3.5*icl+0.1)
	p1 := icl * fcl
	p2 := p1 * 3.96
	p3 := p1 * 100
	p4 := p1 * taa
	p5 := 308.7 - 0.028*mw + p2*math.Pow(tra/100, 4)
	xn := tcla / 100
	xf := tcla / 50
	var hc float64
	for n := 0; math.Abs(xn-xf) > pmvEpsilon; n++ {
		if n >= pmvMaxIterations || math.IsNaN(xn) {
			return math.NaN(), ErrNotConverged
		}
		xf = (xf + xn) / 2
		hcn := 2.38 * math.Pow(math.Abs(100*xf-taa), 0.25)
		hc = math.Max(hcf, hcn)
		xn = (p5 + p4*hc - p2*math.Pow(xf, 4)) / (100 + p3*hc)
	}
	tcl := 100*xn - 273

	hl1 := 3.05e-3 * (5733 - 6.99*mw - pa) // skin diffusion
	hl2 := 0.0                             // sweating
	if mw > 58.15 {
		hl2 = 0.42 * (mw - 58.15)
	}
	hl3 := 1.7e-5 * m * (5867 - pa)                              // latent respiration
	hl4 := 0.0014 * m * (34 - ta)                                // dry respiration
	hl5 := 3.96 * fcl * (math.Pow(xn, 4) - math.Pow(tra/100, 4)) // radiation
	hl6 := fcl * hc * (tcl - ta)                                 // convection
	ts := 0.303*math.Exp(-0.036*m) + 0.028

	return ts * (mw - hl1 - hl2 - hl3 - hl4 - hl5 - hl6), nil
}

// PPD returns the predicted percentage dissatisfied for a PMV.
func PPD(pmv float64) float64 {
	p2 := pmv * pmv
	return 100 - 95*math.Exp(-0.03353*p2*p2-0.2179*p2)
}

// ComfortScore maps a PMV to a 0–5 score: 5 at thermal neutrality, falling
// continuously as the share of dissatisfied people grows.
func ComfortScore(pmv float64) float64 {
	return 5 * (100 - PPD(pmv)) / 95
}

// PET approximates the physiological equivalent temperature (°C) from PMV.
func PET(pmv float64) float64 {
	return 18 + 7*pmv
}

// UTCI returns a regression estimate of the universal thermal climate index
// (°C). va10 is the wind speed at 10 m, clamped to the 0.5–17 m/s validity
// range of the index.
func UTCI(ta, tr, va10, rh float64) float64 {
	va := math.Max(0.5, math.Min(17, va10))
	u := ta + 0.4*(tr-ta)
	if va > 0.5 {
		u -= 2 * math.Sqrt(va)
	}
	if ta > 20 {
		u += 0.01 * (rh - 50)
	} else {
		u -= 0.005 * (rh - 50)
	}
	return u
}
