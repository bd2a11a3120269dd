package wind

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGrid(t *testing.T, w, h int, obstacle func(x, y int) float64) *domain.Grid {
	t.Helper()
	spec := domain.GridSpec{
		Width:     w,
		Height:    h,
		CellSize:  5,
		Center:    domain.GeoRef{Lat: 54.1, Lng: 22.93},
		Elevation: make([]float64, w*h),
		Obstacle:  make([]float64, w*h),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if obstacle != nil {
				spec.Obstacle[y*w+x] = obstacle(x, y)
			}
		}
	}
	g, err := domain.NewGrid(spec)
	require.NoError(t, err)
	return g
}

func singleBuilding(x, y int) float64 {
	if x == 10 && y == 10 {
		return 20
	}
	return 0
}

func block(x, y int) float64 {
	if x >= 8 && x <= 11 && y >= 8 && y <= 13 {
		return 15
	}
	return 0
}

func newSolver(t *testing.T, p Params, opts ...Option) *Solver {
	t.Helper()
	s, err := NewSolver(p, slog.Default(), opts...)
	require.NoError(t, err)
	return s
}

func TestSolver_SingleBuildingWesterly(t *testing.T) {
	g := newGrid(t, 21, 21, singleBuilding)
	res, err := newSolver(t, DefaultParams()).Run(context.Background(), g, domain.WindForcing{SpeedMS: 10, DirectionDeg: 270})
	require.NoError(t, err)
	require.True(t, res.Summary.Converged)

	// Upwind cells see the undisturbed free stream.
	for x := 0; x < 10; x++ {
		i := g.Index(x, 10)
		assert.InDelta(t, 10, res.VelocityX[i], 1e-12, "x=%d", x)
		assert.InDelta(t, 0, res.VelocityY[i], 1e-12, "x=%d", x)
	}

	// The wake slows the cells east of the building and recovers downstream.
	lee := res.Speed[g.Index(11, 10)]
	far := res.Speed[g.Index(18, 10)]
	assert.Less(t, lee, 10.0)
	assert.Less(t, lee, far)
	assert.Less(t, far, 10.0)

	// The flanks accelerate.
	assert.Greater(t, res.Speed[g.Index(10, 9)], 10.0)
	assert.Greater(t, res.Speed[g.Index(10, 11)], 10.0)

	obstacle := g.Index(10, 10)
	assert.Zero(t, res.Speed[obstacle])
	assert.Zero(t, res.VelocityX[obstacle])
}

func TestSolver_FlankDeflection(t *testing.T) {
	g := newGrid(t, 21, 21, singleBuilding)
	res, err := newSolver(t, DefaultParams()).Run(context.Background(), g, domain.WindForcing{SpeedMS: 10, DirectionDeg: 270})
	require.NoError(t, err)

	// North of the building the flow turns north, south of it south.
	assert.Positive(t, res.VelocityY[g.Index(10, 9)])
	assert.Negative(t, res.VelocityY[g.Index(10, 11)])
}

func TestSolver_AmplificationBoundEveryPass(t *testing.T) {
	p := DefaultParams()
	directions := []float64{0, 45, 135, 200, 270, 315}
	for _, dir := range directions {
		g := newGrid(t, 24, 24, block)
		bound := 20 * (1 + p.CornerGain)
		passes := 0
		s := newSolver(t, p, WithPassObserver(func(pass int, east, north []float64) {
			passes++
			for i := range east {
				if v := math.Hypot(east[i], north[i]); v > bound+1e-9 {
					t.Fatalf("direction %g pass %d: speed %g above %g at cell %d", dir, pass, v, bound, i)
				}
			}
		}))
		res, err := s.Run(context.Background(), g, domain.WindForcing{SpeedMS: 20, DirectionDeg: dir})
		require.NoError(t, err)
		assert.Equal(t, res.Summary.Passes, passes)
		assert.LessOrEqual(t, res.Summary.MaxAmplification, s.MaxAmplification()+1e-12)
	}
}

func TestSolver_Deterministic(t *testing.T) {
	g := newGrid(t, 24, 24, block)
	forcing := domain.WindForcing{SpeedMS: 15, DirectionDeg: 315}

	p1 := DefaultParams()
	p1.Workers = 1
	p3 := DefaultParams()
	p3.Workers = 3

	a, err := newSolver(t, p1).Run(context.Background(), g, forcing)
	require.NoError(t, err)
	b, err := newSolver(t, p3).Run(context.Background(), g, forcing)
	require.NoError(t, err)

	assert.Equal(t, a.VelocityX, b.VelocityX)
	assert.Equal(t, a.VelocityY, b.VelocityY)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestSolver_OpenDomainIsUniform(t *testing.T) {
	g := newGrid(t, 8, 8, nil)
	res, err := newSolver(t, DefaultParams()).Run(context.Background(), g, domain.WindForcing{SpeedMS: 12, DirectionDeg: 225})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.Passes)
	assert.True(t, res.Summary.Converged)
	for i := range res.Speed {
		assert.InDelta(t, 12, res.Speed[i], 1e-9)
	}
	assert.InDelta(t, 225, domain.MeteorologicalDirection(res.VelocityX[0], res.VelocityY[0]), 1e-9)
	assert.Zero(t, res.Summary.ShelteredCells)
}

func TestSolver_ComfortClassification(t *testing.T) {
	g := newGrid(t, 21, 21, singleBuilding)
	res, err := newSolver(t, DefaultParams()).Run(context.Background(), g, domain.WindForcing{SpeedMS: 10, DirectionDeg: 270})
	require.NoError(t, err)

	free := PedestrianSpeed(10)
	assert.Equal(t, domain.ClassifyPedestrianWind(free), res.Comfort[g.Index(0, 0)])

	total := 0
	for _, c := range res.Summary.ComfortCounts {
		total += c
	}
	assert.Equal(t, g.OpenCount(), total)
	assert.InDelta(t, res.Summary.MaxSpeedMS/10, res.Summary.MaxAmplification, 1e-12)

	require.NotNil(t, res.Field)
	require.NoError(t, res.Field.Check(g))
	assert.InDelta(t, domain.ReferenceHeightM, res.Field.HeightM, 0)
}

func TestSolver_RejectsOutOfRange(t *testing.T) {
	g := newGrid(t, 5, 5, nil)
	s := newSolver(t, DefaultParams())

	for _, f := range []domain.WindForcing{
		{SpeedMS: 4.9, DirectionDeg: 270},
		{SpeedMS: 35.1, DirectionDeg: 270},
		{SpeedMS: 10, DirectionDeg: 361},
	} {
		_, err := s.Run(context.Background(), g, f)
		require.ErrorIs(t, err, domain.ErrOutOfRange)
	}
}

func TestSolver_Cancellation(t *testing.T) {
	g := newGrid(t, 24, 24, block)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSolver(t, DefaultParams()).Run(ctx, g, domain.WindForcing{SpeedMS: 10, DirectionDeg: 270})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSolver_PassCap(t *testing.T) {
	p := DefaultParams()
	p.MaxPasses = 2
	g := newGrid(t, 24, 24, block)

	res, err := newSolver(t, p).Run(context.Background(), g, domain.WindForcing{SpeedMS: 10, DirectionDeg: 270})
	require.NoError(t, err)
	assert.False(t, res.Summary.Converged)
	assert.Equal(t, 2, res.Summary.Passes)
}

func TestDirectionalFactor(t *testing.T) {
	tests := []struct {
		dir  float64
		want float64
	}{
		{0, 1.15},
		{270, 1.15},
		{280, 1.15},
		{345, 1.15},
		{20, 1.05},
		{240, 1.05},
		{45, 0.9},
		{225, 0.9},
		{360, 1.15},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, DirectionalFactor(tt.dir), 0, "direction %g", tt.dir)
	}
}

func TestFacadePressures(t *testing.T) {
	g := newGrid(t, 5, 5, nil)
	res, err := newSolver(t, DefaultParams()).Run(context.Background(), g, domain.WindForcing{SpeedMS: 10, DirectionDeg: 270})
	require.NoError(t, err)

	q := 0.5 * 1.225 * 11.5 * 11.5
	assert.InDelta(t, 0.8*q, res.Summary.WindwardPressurePa, 1e-9)
	assert.InDelta(t, -0.5*q, res.Summary.LeewardPressurePa, 1e-9)
	assert.InDelta(t, -0.7*q, res.Summary.SidePressurePa, 1e-9)
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.WakeDeficit = 1.2
	p.MaxPasses = 0
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wake deficit")
	assert.Contains(t, err.Error(), "max passes")
}

func TestSolver_NonFiniteVelocityIsInstability(t *testing.T) {
	g := newGrid(t, 24, 24, block)
	corrupt := g.Index(2, 2)
	s := newSolver(t, DefaultParams(), WithPassObserver(func(pass int, east, _ []float64) {
		if pass == 2 {
			east[corrupt] = math.Inf(1)
		}
	}))

	res, err := s.Run(context.Background(), g, domain.WindForcing{SpeedMS: 20, DirectionDeg: 270})
	require.ErrorIs(t, err, domain.ErrUnstable)
	assert.Nil(t, res)

	var ie *domain.InstabilityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 3, ie.Step)
	assert.Equal(t, corrupt, ie.Cell)
	assert.Equal(t, 2, ie.X)
	assert.Equal(t, 2, ie.Y)
	assert.Equal(t, "velocity", ie.Quantity)
	assert.True(t, math.IsInf(ie.Value, 0))
}
