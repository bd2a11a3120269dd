package terrain

import (
	"testing"

	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 60, 45
	return cfg
}

func rasters(g *domain.Grid) (elev, obst []float64, cover []domain.LandCover) {
	for i := 0; i < g.Len(); i++ {
		elev = append(elev, g.Elevation(i))
		obst = append(obst, g.ObstacleHeight(i))
		cover = append(cover, g.LandCover(i))
	}
	return elev, obst, cover
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(smallConfig())
	require.NoError(t, err)
	b, err := Generate(smallConfig())
	require.NoError(t, err)

	ea, oa, ca := rasters(a)
	eb, ob, cb := rasters(b)
	assert.Equal(t, ea, eb)
	assert.Equal(t, oa, ob)
	assert.Equal(t, ca, cb)

	cfg := smallConfig()
	cfg.Seed = 7
	c, err := Generate(cfg)
	require.NoError(t, err)
	ec, _, _ := rasters(c)
	assert.NotEqual(t, ea, ec)
}

func TestGenerate_Layout(t *testing.T) {
	cfg := smallConfig()
	g, err := Generate(cfg)
	require.NoError(t, err)

	assert.Equal(t, 60, g.Width())
	assert.Equal(t, 45, g.Height())
	assert.Positive(t, g.BuildingCount())
	assert.LessOrEqual(t, g.MaxObstacleHeight(), cfg.MaxHeight)

	lo, hi := g.ElevationRange()
	assert.GreaterOrEqual(t, lo, cfg.BaseElevation-cfg.Relief/2)
	assert.LessOrEqual(t, hi, cfg.BaseElevation+cfg.Relief/2)

	for i := 0; i < g.Len(); i++ {
		x, y := g.XY(i)
		street := x%cfg.BlockCells >= cfg.BlockCells-cfg.StreetCells ||
			y%cfg.BlockCells >= cfg.BlockCells-cfg.StreetCells
		if street {
			require.Equal(t, domain.LandCoverPaved, g.LandCover(i), "street cell (%d,%d)", x, y)
			require.False(t, g.IsObstacle(i), "street cell (%d,%d)", x, y)
		}
		if g.IsObstacle(i) {
			require.Equal(t, domain.LandCoverBuilding, g.LandCover(i))
		}
	}
}

func TestGenerate_CoverageBounds(t *testing.T) {
	cfg := smallConfig()
	cfg.Coverage = 0
	g, err := Generate(cfg)
	require.NoError(t, err)
	assert.Zero(t, g.ObstacleCount())

	cfg.Coverage = 1
	g, err = Generate(cfg)
	require.NoError(t, err)
	// 5 × 4 blocks, each with one footprint.
	assert.Equal(t, 20, g.BuildingCount())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.BlockCells = 4
	cfg.Coverage = 2
	err := cfg.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidGrid)
	assert.Contains(t, err.Error(), "block of 4 cells")
	assert.Contains(t, err.Error(), "coverage")

	_, err = Generate(cfg)
	assert.Error(t, err)
}
