package domain

import "fmt"

// FloodRisk is the depth-based flood hazard class of a cell or scenario.
type FloodRisk uint8

const (
	RiskMinimal FloodRisk = iota
	RiskLow
	RiskModerate
	RiskHigh
	RiskCritical
)

var floodRiskNames = [...]string{"minimal", "low", "moderate", "high", "critical"}

// Depth thresholds (m) separating the flood risk classes.
var floodRiskThresholds = [...]float64{0.05, 0.15, 0.40, 0.80}

// ClassifyDepth maps a water depth in metres to its risk class.
func ClassifyDepth(depth float64) FloodRisk {
	for i, limit := range floodRiskThresholds {
		if depth < limit {
			return FloodRisk(i)
		}
	}
	return RiskCritical
}

func (r FloodRisk) String() string { return enumName(floodRiskNames[:], int(r), "risk") }

func (r FloodRisk) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// WindComfort is the Lawson pedestrian comfort class.
type WindComfort uint8

const (
	WindComfortable WindComfort = iota
	WindAcceptable
	WindUncomfortable
	WindDangerous
	WindExtreme
)

var windComfortNames = [...]string{"comfortable", "acceptable", "uncomfortable", "dangerous", "extreme"}

// Pedestrian-level speed limits (m/s) of the Lawson classes.
var windComfortThresholds = [...]float64{4, 6, 8, 12}

// ClassifyPedestrianWind maps a pedestrian-level speed to its comfort class.
func ClassifyPedestrianWind(speed float64) WindComfort {
	for i, limit := range windComfortThresholds {
		if speed < limit {
			return WindComfort(i)
		}
	}
	return WindExtreme
}

func (c WindComfort) String() string { return enumName(windComfortNames[:], int(c), "comfort") }

func (c WindComfort) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ThermalStress is the UTCI assessment category.
type ThermalStress uint8

const (
	StressExtremeCold ThermalStress = iota
	StressVeryStrongCold
	StressStrongCold
	StressModerateCold
	StressSlightCold
	StressNone
	StressModerateHeat
	StressStrongHeat
	StressVeryStrongHeat
	StressExtremeHeat
)

var thermalStressNames = [...]string{
	"extreme_cold", "very_strong_cold", "strong_cold", "moderate_cold", "slight_cold",
	"no_stress", "moderate_heat", "strong_heat", "very_strong_heat", "extreme_heat",
}

// UTCI (°C) lower bounds of each category above extreme cold.
var utciThresholds = [...]float64{-40, -27, -13, 0, 9, 26, 32, 38, 46}

// ClassifyUTCI maps a UTCI value to its stress category.
func ClassifyUTCI(utci float64) ThermalStress {
	for i, limit := range utciThresholds {
		if utci < limit {
			return ThermalStress(i)
		}
	}
	return StressExtremeHeat
}

func (s ThermalStress) String() string { return enumName(thermalStressNames[:], int(s), "stress") }

func (s ThermalStress) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func enumName(names []string, i int, kind string) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("%s(%d)", kind, i)
}
