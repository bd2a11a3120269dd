package flood

import (
	"math"

	"github.com/couchcryptid/hazard-sim/internal/compute"
	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// state is the mutable simulation state of one flood run.
//
// Discharges live on cell faces (per unit width, m²/s):
//
//	qx[y*(W+1)+x]  face between cells x-1 and x of row y, positive eastward
//	qy[y*W+x]      face between rows y-1 and y of column x, positive southward
//
// Faces x=0, x=W, y=0 and y=H lie on the domain edge.
type state struct {
	g      *domain.Grid
	p      Params
	w, h   int
	dx     float64
	depth  []float64
	next   []float64
	qx, qy []float64
	factor []float64

	outflowM3 float64
	rainM3    float64
}

func newState(g *domain.Grid, p Params) *state {
	w, h := g.Width(), g.Height()
	return &state{
		g:      g,
		p:      p,
		w:      w,
		h:      h,
		dx:     g.CellSize(),
		depth:  make([]float64, w*h),
		next:   make([]float64, w*h),
		qx:     make([]float64, (w+1)*h),
		qy:     make([]float64, w*(h+1)),
		factor: make([]float64, w*h),
	}
}

func (s *state) fx(x, y int) int { return y*(s.w+1) + x }
func (s *state) fy(x, y int) int { return y*s.w + x }

// timeStep returns the Courant-limited step for the current depth field.
func (s *state) timeStep() float64 {
	var band compute.Band[float64]
	compute.Rows(s.p.Workers, s.h, func(y0, y1 int) {
		maxC := 0.0
		for y := y0; y < y1; y++ {
			for x := 0; x < s.w; x++ {
				d := s.depth[s.g.Index(x, y)]
				if d <= s.p.DryDepth {
					continue
				}
				q := math.Max(
					math.Max(math.Abs(s.qx[s.fx(x, y)]), math.Abs(s.qx[s.fx(x+1, y)])),
					math.Max(math.Abs(s.qy[s.fy(x, y)]), math.Abs(s.qy[s.fy(x, y+1)])),
				)
				if c := q/d + math.Sqrt(gravity*d); c > maxC {
					maxC = c
				}
			}
		}
		band.Add(maxC)
	})

	maxC := 0.0
	for _, c := range band.Parts() {
		maxC = math.Max(maxC, c)
	}
	if maxC == 0 {
		return s.p.MaxTimeStep
	}
	return math.Min(s.p.MaxTimeStep, s.p.Courant*s.dx/maxC)
}

// inertial applies the local inertial momentum update to one face discharge.
// slope is the free-surface gradient along the positive face direction.
func (s *state) inertial(q, hflow, slope, dt float64) float64 {
	n := s.p.ManningN
	num := q - gravity*hflow*dt*slope
	den := 1 + gravity*dt*n*n*math.Abs(q)/math.Pow(hflow, 7.0/3.0)
	return num / den
}

// interiorFlux updates the discharge across the face between cell a
// (west/north) and cell b (east/south).
func (s *state) interiorFlux(q float64, a, b int, dt float64) float64 {
	if s.g.IsObstacle(a) || s.g.IsObstacle(b) {
		return 0
	}
	za, zb := s.g.Elevation(a), s.g.Elevation(b)
	etaA, etaB := za+s.depth[a], zb+s.depth[b]
	hflow := math.Max(etaA, etaB) - math.Max(za, zb)
	if hflow <= s.p.DryDepth {
		return 0
	}
	return s.inertial(q, hflow, (etaB-etaA)/s.dx, dt)
}

// edgeOutflow returns the outward discharge (>= 0) through the edge face of
// cell c, whose inward neighbour is inner (-1 when the grid is one cell wide).
// The bed is extrapolated linearly past the edge and the water depth held
// constant, so water leaves only where the terrain falls toward the edge.
func (s *state) edgeOutflow(qOut float64, c, inner int, dt float64) float64 {
	if s.p.Boundary == BoundaryClosed || inner < 0 || s.g.IsObstacle(c) {
		return 0
	}
	d := s.depth[c]
	drop := s.g.Elevation(inner) - s.g.Elevation(c)
	if d <= s.p.DryDepth || drop <= 0 {
		return 0
	}
	// In the outward frame the surface falls by drop/dx.
	return math.Max(0, s.inertial(qOut, d, -drop/s.dx, dt))
}

// updateFluxes recomputes every face discharge from the current depths.
func (s *state) updateFluxes(dt float64) {
	compute.Rows(s.p.Workers, s.h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			s.updateRowFluxes(y, dt)
		}
		if y1 == s.h {
			// South edge faces belong to the band holding the last row.
			for x := 0; x < s.w; x++ {
				c := s.g.Index(x, s.h-1)
				f := s.fy(x, s.h)
				s.qy[f] = s.edgeOutflow(s.qy[f], c, s.northOf(x, s.h-1), dt)
			}
		}
	})
}

func (s *state) updateRowFluxes(y int, dt float64) {
	// West edge, interior x-faces, east edge.
	c := s.g.Index(0, y)
	f := s.fx(0, y)
	s.qx[f] = -s.edgeOutflow(-s.qx[f], c, s.eastOf(0, y), dt)
	for x := 1; x < s.w; x++ {
		f = s.fx(x, y)
		s.qx[f] = s.interiorFlux(s.qx[f], s.g.Index(x-1, y), s.g.Index(x, y), dt)
	}
	c = s.g.Index(s.w-1, y)
	f = s.fx(s.w, y)
	s.qx[f] = s.edgeOutflow(s.qx[f], c, s.westOf(s.w-1, y), dt)

	// North face of every cell in the row: an edge face on row 0.
	for x := 0; x < s.w; x++ {
		f = s.fy(x, y)
		if y == 0 {
			s.qy[f] = -s.edgeOutflow(-s.qy[f], s.g.Index(x, 0), s.southOf(x, 0), dt)
			continue
		}
		s.qy[f] = s.interiorFlux(s.qy[f], s.g.Index(x, y-1), s.g.Index(x, y), dt)
	}
}

func (s *state) eastOf(x, y int) int {
	if x+1 >= s.w {
		return -1
	}
	return s.g.Index(x+1, y)
}

func (s *state) westOf(x, y int) int {
	if x-1 < 0 {
		return -1
	}
	return s.g.Index(x-1, y)
}

func (s *state) southOf(x, y int) int {
	if y+1 >= s.h {
		return -1
	}
	return s.g.Index(x, y+1)
}

func (s *state) northOf(x, y int) int {
	if y-1 < 0 {
		return -1
	}
	return s.g.Index(x, y-1)
}

// limitOutflow scales each cell's outgoing discharges so that one step never
// removes more water than the cell holds.
func (s *state) limitOutflow(dt float64) {
	k := dt / s.dx
	compute.Rows(s.p.Workers, s.h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < s.w; x++ {
				i := s.g.Index(x, y)
				out := math.Max(0, -s.qx[s.fx(x, y)]) + math.Max(0, s.qx[s.fx(x+1, y)]) +
					math.Max(0, -s.qy[s.fy(x, y)]) + math.Max(0, s.qy[s.fy(x, y+1)])
				drain := k * out
				s.factor[i] = 1
				if drain > s.depth[i] {
					s.factor[i] = s.depth[i] / drain
				}
			}
		}
	})

	compute.Rows(s.p.Workers, s.h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x <= s.w; x++ {
				f := s.fx(x, y)
				q := s.qx[f]
				// Positive flow is donated by the western cell.
				donorX := x - 1
				if q < 0 {
					donorX = x
				}
				if donorX >= 0 && donorX < s.w {
					s.qx[f] = q * s.factor[s.g.Index(donorX, y)]
				}
			}
			last := y
			if y == s.h-1 {
				last = s.h
			}
			for fyRow := y; fyRow <= last; fyRow++ {
				for x := 0; x < s.w; x++ {
					f := s.fy(x, fyRow)
					q := s.qy[f]
					donorY := fyRow - 1
					if q < 0 {
						donorY = fyRow
					}
					if donorY >= 0 && donorY < s.h {
						s.qy[f] = q * s.factor[s.g.Index(x, donorY)]
					}
				}
			}
		}
	})
}

// updateDepth applies continuity and the rainfall source into the next
// buffer, then swaps buffers. rainDepth is the rain (m) added this step.
func (s *state) updateDepth(step int, dt, rainDepth float64) error {
	k := dt / s.dx
	var failures compute.Band[*domain.InstabilityError]
	compute.Rows(s.p.Workers, s.h, func(y0, y1 int) {
		var first *domain.InstabilityError
		for y := y0; y < y1; y++ {
			for x := 0; x < s.w; x++ {
				i := s.g.Index(x, y)
				if s.g.IsObstacle(i) {
					s.next[i] = 0
					continue
				}
				net := s.qx[s.fx(x, y)] - s.qx[s.fx(x+1, y)] +
					s.qy[s.fy(x, y)] - s.qy[s.fy(x, y+1)]
				d := s.depth[i] + k*net + rainDepth
				if !finite(d) {
					if first == nil || s.precedes(i, first.Cell) {
						first = &domain.InstabilityError{Step: step, Cell: i, X: x, Y: y, Quantity: "depth", Value: d}
					}
					d = 0
				}
				if d < 0 {
					d = 0
				}
				s.next[i] = d
			}
		}
		if first != nil {
			failures.Add(first)
		}
	})

	if parts := failures.Parts(); len(parts) > 0 {
		first := parts[0]
		for _, f := range parts[1:] {
			if s.precedes(f.Cell, first.Cell) {
				first = f
			}
		}
		return first
	}

	s.accumulateBoundary(dt)
	s.rainM3 += rainDepth * s.dx * s.dx * float64(s.g.OpenCount())
	s.depth, s.next = s.next, s.depth
	return nil
}

// precedes orders non-finite cells for the diagnostic: a cell that entered the
// step already non-finite is the source of the contamination and wins over its
// neighbours, then the lower index wins.
func (s *state) precedes(a, b int) bool {
	srcA, srcB := !finite(s.depth[a]), !finite(s.depth[b])
	if srcA != srcB {
		return srcA
	}
	return a < b
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// accumulateBoundary adds the volume that left through the domain edge.
func (s *state) accumulateBoundary(dt float64) {
	var q float64
	for y := 0; y < s.h; y++ {
		q += math.Max(0, -s.qx[s.fx(0, y)]) + math.Max(0, s.qx[s.fx(s.w, y)])
	}
	for x := 0; x < s.w; x++ {
		q += math.Max(0, -s.qy[s.fy(x, 0)]) + math.Max(0, s.qy[s.fy(x, s.h)])
	}
	s.outflowM3 += q * dt * s.dx
}

// volume returns the stored water volume (m³).
func (s *state) volume() float64 {
	var v float64
	for _, d := range s.depth {
		v += d
	}
	return v * s.dx * s.dx
}
