// Package terrain synthesises urban grid domains from layered simplex noise:
// rolling terrain, a street grid, building footprints and land cover.
package terrain

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// Config holds domain generation parameters.
type Config struct {
	Width, Height int
	CellSize      float64 // m
	Center        domain.GeoRef
	Seed          int64

	BaseElevation float64 // m above sea level
	Relief        float64 // m, peak-to-trough terrain variation
	BlockCells    int     // city block edge length including its street
	StreetCells   int     // street width
	Coverage      float64 // share of blocks carrying a building (0–1)
	MinHeight     float64 // m
	MaxHeight     float64 // m
	WaterLevel    float64 // normalised elevation below which open blocks are water
}

// DefaultConfig returns a 1 km² town centre at 5 m resolution.
func DefaultConfig() Config {
	return Config{
		Width:         200,
		Height:        200,
		CellSize:      5,
		Center:        domain.GeoRef{Lat: 54.10, Lng: 22.95},
		Seed:          42,
		BaseElevation: 163,
		Relief:        8,
		BlockCells:    14,
		StreetCells:   3,
		Coverage:      0.75,
		MinHeight:     6,
		MaxHeight:     24,
		WaterLevel:    0.22,
	}
}

// Validate checks that cfg describes a buildable domain.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("dimensions %dx%d must be positive", c.Width, c.Height))
	}
	if !(c.CellSize > 0) {
		errs = append(errs, fmt.Errorf("cell size %g must be positive", c.CellSize))
	}
	if c.StreetCells < 1 || c.BlockCells < c.StreetCells+3 {
		errs = append(errs, fmt.Errorf("block of %d cells cannot hold a %d cell street and a building", c.BlockCells, c.StreetCells))
	}
	if c.Coverage < 0 || c.Coverage > 1 {
		errs = append(errs, fmt.Errorf("coverage %g outside [0, 1]", c.Coverage))
	}
	if !(c.MinHeight > 0) || c.MaxHeight < c.MinHeight {
		errs = append(errs, fmt.Errorf("building heights %g–%g invalid", c.MinHeight, c.MaxHeight))
	}
	if c.Relief < 0 {
		errs = append(errs, fmt.Errorf("relief %g must be non-negative", c.Relief))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: terrain config: %w", domain.ErrInvalidGrid, errors.Join(errs...))
	}
	return nil
}

// Generate builds a grid domain from cfg. The output depends only on cfg, so
// the same seed always yields the same domain.
func Generate(cfg Config) (*domain.Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	elevNoise := opensimplex.NewNormalized(cfg.Seed)
	blockNoise := opensimplex.NewNormalized(cfg.Seed + 1)
	rng := rand.New(rand.NewSource(cfg.Seed))

	n := cfg.Width * cfg.Height
	spec := domain.GridSpec{
		Width:     cfg.Width,
		Height:    cfg.Height,
		CellSize:  cfg.CellSize,
		Center:    cfg.Center,
		Elevation: make([]float64, n),
		Obstacle:  make([]float64, n),
		LandCover: make([]domain.LandCover, n),
	}

	// Sample terrain in metres so the relief scale is resolution independent.
	relief := make([]float64, n)
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			i := y*cfg.Width + x
			px, py := float64(x)*cfg.CellSize, float64(y)*cfg.CellSize
			relief[i] = octaveNoise(elevNoise, px, py, 4, 0.004, 0.5)
			spec.Elevation[i] = cfg.BaseElevation + cfg.Relief*(relief[i]-0.5)
		}
	}

	blocksX := (cfg.Width + cfg.BlockCells - 1) / cfg.BlockCells
	blocksY := (cfg.Height + cfg.BlockCells - 1) / cfg.BlockCells
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			b := block{
				x0: bx * cfg.BlockCells,
				y0: by * cfg.BlockCells,
				x1: min((bx+1)*cfg.BlockCells-cfg.StreetCells, cfg.Width),
				y1: min((by+1)*cfg.BlockCells-cfg.StreetCells, cfg.Height),
			}
			if b.x1 <= b.x0 || b.y1 <= b.y0 {
				continue
			}
			// Draw in a fixed order so every block consumes the same randomness.
			roll, heightRoll := rng.Float64(), rng.Float64()
			cx, cy := float64(b.x0+b.x1)/2*cfg.CellSize, float64(b.y0+b.y1)/2*cfg.CellSize
			wet := blockNoise.Eval2(cx*0.01, cy*0.01) < cfg.WaterLevel

			switch {
			case roll < cfg.Coverage:
				h := cfg.MinHeight + heightRoll*(cfg.MaxHeight-cfg.MinHeight)
				b.fill(&spec, domain.LandCoverGreen)
				b.inset(1).build(&spec, math.Round(h))
			case wet:
				b.fill(&spec, domain.LandCoverWater)
			default:
				b.fill(&spec, domain.LandCoverGreen)
			}
		}
	}

	for i, c := range spec.LandCover {
		if c == domain.LandCoverUnknown {
			spec.LandCover[i] = domain.LandCoverPaved
		}
	}
	return domain.NewGrid(spec)
}

// block is a half-open cell rectangle [x0, x1) × [y0, y1).
type block struct{ x0, y0, x1, y1 int }

func (b block) inset(k int) block {
	return block{b.x0 + k, b.y0 + k, b.x1 - k, b.y1 - k}
}

func (b block) fill(spec *domain.GridSpec, cover domain.LandCover) {
	for y := b.y0; y < b.y1; y++ {
		for x := b.x0; x < b.x1; x++ {
			spec.LandCover[y*spec.Width+x] = cover
		}
	}
}

func (b block) build(spec *domain.GridSpec, height float64) {
	if b.x1 <= b.x0 || b.y1 <= b.y0 {
		return
	}
	for y := b.y0; y < b.y1; y++ {
		for x := b.x0; x < b.x1; x++ {
			i := y*spec.Width + x
			spec.Obstacle[i] = height
			spec.LandCover[i] = domain.LandCoverBuilding
		}
	}
}

// octaveNoise sums octaves of normalised simplex noise into [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
