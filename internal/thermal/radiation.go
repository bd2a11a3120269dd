package thermal

import (
	"math"

	"github.com/couchcryptid/hazard-sim/internal/compute"
	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// Radiant heating of the mean radiant temperature per W/m² of global solar
// irradiance.
const (
	sunlitMRTGain = 0.025
	shadedMRTGain = 0.005
)

// SunPosition returns the solar noon elevation and azimuth (degrees,
// clockwise from north) at latitude lat for a solar declination.
func SunPosition(lat, declination float64) (elevation, azimuth float64) {
	elevation = 90 - math.Abs(lat-declination)
	azimuth = 180
	if lat < declination {
		azimuth = 0
	}
	return elevation, azimuth
}

// MRT returns the mean radiant temperature (°C) for air temperature ta under
// solar irradiance (W/m²).
func MRT(ta, solar float64, shaded bool) float64 {
	if shaded {
		return ta + shadedMRTGain*solar
	}
	return ta + sunlitMRTGain*solar
}

// Microclimate applies the land-cover offsets of cell cover to the ambient
// air temperature and relative humidity.
func Microclimate(cover domain.LandCover, ta, rh float64) (float64, float64) {
	switch cover {
	case domain.LandCoverPaved:
		ta, rh = ta+2.5, rh-3
	case domain.LandCoverGreen:
		ta, rh = ta-2.0, rh+8
	case domain.LandCoverWater:
		ta, rh = ta-1.5, rh+5
	}
	return ta, math.Max(0, math.Min(100, rh))
}

// Shadows marks the open cells of g that lie in the shadow of an obstacle for
// a sun at the given elevation and azimuth (degrees). With the sun at or
// below the horizon every cell is shaded.
func Shadows(g *domain.Grid, elevation, azimuth float64, workers int) []bool {
	n := g.Len()
	shaded := make([]bool, n)
	if elevation <= 0 {
		for i := range shaded {
			shaded[i] = !g.IsObstacle(i)
		}
		return shaded
	}
	if elevation >= 90 || g.ObstacleCount() == 0 {
		return shaded
	}

	tanElev := math.Tan(elevation * math.Pi / 180)
	lo, hi := g.ElevationRange()
	limit := (g.MaxObstacleHeight() + hi - lo) / tanElev

	// Unit march toward the sun in grid steps, rows growing southward.
	az := azimuth * math.Pi / 180
	sx, sy := math.Sin(az), -math.Cos(az)
	scale := math.Max(math.Abs(sx), math.Abs(sy))
	sx, sy = sx/scale, sy/scale
	stepM := g.CellSize() * math.Hypot(sx, sy)

	compute.Rows(workers, g.Height(), func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < g.Width(); x++ {
				i := g.Index(x, y)
				if g.IsObstacle(i) {
					continue
				}
				shaded[i] = inShadow(g, x, y, sx, sy, stepM, limit, tanElev)
			}
		}
	})
	return shaded
}

func inShadow(g *domain.Grid, x, y int, sx, sy, stepM, limit, tanElev float64) bool {
	z := g.Elevation(g.Index(x, y))
	for k := 1; ; k++ {
		d := float64(k) * stepM
		if d > limit {
			return false
		}
		cx := x + int(math.Round(float64(k)*sx))
		cy := y + int(math.Round(float64(k)*sy))
		if !g.InBounds(cx, cy) {
			return false
		}
		j := g.Index(cx, cy)
		if !g.IsObstacle(j) {
			continue
		}
		if g.Elevation(j)+g.ObstacleHeight(j)-z > d*tanElev {
			return true
		}
	}
}
