package wind

import (
	"math"

	"github.com/couchcryptid/hazard-sim/internal/compute"
	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// minDeficit is the deficit below which a wake is considered recovered.
const minDeficit = 1e-6

// field is the double-buffered state of one wind run. Deficit and wake height
// are advected downstream one cell per pass; velocity follows from them.
type field struct {
	g    *domain.Grid
	p    Params
	w, h int
	dx   float64

	s0     float64
	ue, un float64 // free-stream unit vector, east/north
	ne, nn float64 // unit perpendicular toward the plus lateral side
	sx, sy int     // grid step pointing downstream, 0 when the axis carries no flow
	wx, wy float64 // blend weights of the upstream neighbours
	xMajor bool

	d0 []float64 // obstacle lee deficit, 0 for open cells

	def, hgt, vx, vy     []float64
	defN, hgtN, vxN, vyN []float64
}

func newField(g *domain.Grid, p Params, f domain.WindForcing) *field {
	n := g.Len()
	st := &field{
		g: g, p: p,
		w: g.Width(), h: g.Height(),
		dx:   g.CellSize(),
		s0:   f.SpeedMS,
		d0:   make([]float64, n),
		def:  make([]float64, n),
		hgt:  make([]float64, n),
		vx:   make([]float64, n),
		vy:   make([]float64, n),
		defN: make([]float64, n),
		hgtN: make([]float64, n),
		vxN:  make([]float64, n),
		vyN:  make([]float64, n),
	}

	east, north := domain.FlowVector(f.SpeedMS, f.DirectionDeg)
	st.ue, st.un = east/f.SpeedMS, north/f.SpeedMS

	// Grid rows grow southward.
	gx, gy := st.ue, -st.un
	st.sx, st.sy = sign(gx), sign(gy)
	ax, ay := math.Abs(gx), math.Abs(gy)
	st.wx = ax / (ax + ay)
	st.wy = 1 - st.wx
	st.xMajor = ax >= ay

	// The plus lateral side is south for x-major flow and east otherwise.
	plusE, plusN := 0.0, -1.0
	if !st.xMajor {
		plusE, plusN = 1, 0
	}
	st.ne, st.nn = -st.un, st.ue
	if st.ne*plusE+st.nn*plusN < 0 {
		st.ne, st.nn = -st.ne, -st.nn
	}

	for i := 0; i < n; i++ {
		if g.IsObstacle(i) {
			st.d0[i] = p.deficit(g.ObstacleHeight(i))
			continue
		}
		st.vx[i], st.vy[i] = east, north
	}
	return st
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// sample returns the deficit and wake height seen from cell (x, y) of the
// previous pass. Obstacles act as fixed deficit sources; outside the grid the
// flow is undisturbed.
func (st *field) sample(x, y int) (d, hw float64) {
	if !st.g.InBounds(x, y) {
		return 0, 0
	}
	i := st.g.Index(x, y)
	if st.g.IsObstacle(i) {
		return st.d0[i], st.g.ObstacleHeight(i)
	}
	return st.def[i], st.hgt[i]
}

// pass computes one sweep into the next buffers, swaps them and returns the
// largest velocity change and speed seen.
func (st *field) pass(step int) (maxDelta, maxSpeed float64, err error) {
	type partial struct {
		delta, speed float64
		fail         *domain.InstabilityError
	}
	var band compute.Band[partial]

	compute.Rows(st.p.Workers, st.h, func(y0, y1 int) {
		var part partial
		for y := y0; y < y1; y++ {
			for x := 0; x < st.w; x++ {
				i := st.g.Index(x, y)
				if st.g.IsObstacle(i) {
					st.defN[i], st.hgtN[i], st.vxN[i], st.vyN[i] = 0, 0, 0, 0
					continue
				}
				d, hw, ve, vn := st.cell(x, y)
				st.defN[i], st.hgtN[i], st.vxN[i], st.vyN[i] = d, hw, ve, vn

				// A non-finite change means the previous pass left a corrupt
				// vector behind even if this pass recomputed a finite one.
				s := math.Hypot(ve, vn)
				dv := math.Hypot(ve-st.vx[i], vn-st.vy[i])
				if bad, ok := nonFinite(s, dv); ok {
					if part.fail == nil {
						part.fail = &domain.InstabilityError{Step: step, Cell: i, X: x, Y: y, Quantity: "velocity", Value: bad}
					}
					continue
				}
				part.speed = math.Max(part.speed, s)
				part.delta = math.Max(part.delta, dv)
			}
		}
		band.Add(part)
	})

	var fail *domain.InstabilityError
	for _, part := range band.Parts() {
		maxDelta = math.Max(maxDelta, part.delta)
		maxSpeed = math.Max(maxSpeed, part.speed)
		if part.fail != nil && (fail == nil || part.fail.Cell < fail.Cell) {
			fail = part.fail
		}
	}
	if fail != nil {
		return 0, 0, fail
	}

	st.def, st.defN = st.defN, st.def
	st.hgt, st.hgtN = st.hgtN, st.hgt
	st.vx, st.vxN = st.vxN, st.vx
	st.vy, st.vyN = st.vyN, st.vy
	return maxDelta, maxSpeed, nil
}

// nonFinite returns the first of vs that is NaN or infinite.
func nonFinite(vs ...float64) (float64, bool) {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return v, true
		}
	}
	return 0, false
}

// cell evaluates the wake model for one open cell.
func (st *field) cell(x, y int) (d, hw, ve, vn float64) {
	var din, dh float64
	if st.wx > 0 {
		da, ha := st.sample(x-st.sx, y)
		din += st.wx * da
		dh += st.wx * da * ha
	}
	if st.wy > 0 {
		db, hb := st.sample(x, y-st.sy)
		din += st.wy * db
		dh += st.wy * db * hb
	}
	if din > 0 {
		hw = dh / din
		if hw > 0 {
			d = din * math.Exp(-st.dx/(st.p.WakeRecovery*hw))
		}
	}
	if d < minDeficit {
		d, hw = 0, 0
	}

	var dMinus, dPlus float64
	if st.xMajor {
		dMinus, _ = st.sample(x, y-1)
		dPlus, _ = st.sample(x, y+1)
	} else {
		dMinus, _ = st.sample(x-1, y)
		dPlus, _ = st.sample(x+1, y)
	}
	amp := st.p.CornerGain * math.Max(0, math.Max(dMinus, dPlus)-d)
	phi := st.p.MaxDeflection * math.Max(-1, math.Min(1, dMinus-dPlus))

	s := st.s0 * (1 - d) * (1 + amp)
	if phi == 0 {
		return d, hw, s * st.ue, s * st.un
	}
	c, sn := math.Cos(phi), math.Sin(phi)
	return d, hw, s * (c*st.ue + sn*st.ne), s * (c*st.un + sn*st.nn)
}
