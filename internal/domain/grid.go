package domain

import (
	"fmt"
	"math"
)

// MaxCells bounds the size of a grid domain. The engine targets a fixed urban
// extent (a few km² at metre-scale resolution), not arbitrary resolutions.
const MaxCells = 4_000_000

// metresPerDegree is the length of one degree of latitude on the WGS84 sphere approximation.
const metresPerDegree = 111_320.0

// LandCover classifies the surface of a cell.
type LandCover uint8

const (
	LandCoverUnknown LandCover = iota
	LandCoverPaved
	LandCoverGreen
	LandCoverWater
	LandCoverBuilding
)

var landCoverNames = [...]string{"unknown", "paved", "green", "water", "building"}

func (l LandCover) String() string {
	if int(l) < len(landCoverNames) {
		return landCoverNames[l]
	}
	return fmt.Sprintf("landcover(%d)", l)
}

// ParseLandCover maps a raster code to a LandCover.
func ParseLandCover(code int) (LandCover, error) {
	if code < 0 || code >= len(landCoverNames) {
		return 0, fmt.Errorf("%w: unknown land cover code %d", ErrInvalidGrid, code)
	}
	return LandCover(code), nil
}

// GeoRef is a WGS84 coordinate.
type GeoRef struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// GridSpec carries the raw rasters used to build a Grid.
type GridSpec struct {
	Width     int
	Height    int
	CellSize  float64
	Center    GeoRef
	Elevation []float64
	Obstacle  []float64
	LandCover []LandCover // optional
}

// Grid is the immutable raster shared read-only by every solver run.
// Row 0 is the northern edge and column 0 the western edge.
type Grid struct {
	width, height int
	cellSize      float64
	center        GeoRef

	elevation []float64
	obstacle  []float64
	landCover []LandCover

	buildingID    []int32
	buildingCount int
	obstacleCount int
	maxObstacle   float64
	minElevation  float64
	maxElevation  float64
}

// NewGrid validates spec and returns a Grid holding private copies of its rasters.
func NewGrid(spec GridSpec) (*Grid, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidGrid, spec.Width, spec.Height)
	}
	if spec.Width > MaxCells/spec.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d cells", ErrGridTooLarge, spec.Width, spec.Height, MaxCells)
	}
	n := spec.Width * spec.Height
	if !(spec.CellSize > 0) || math.IsInf(spec.CellSize, 0) {
		return nil, fmt.Errorf("%w: cell size %g", ErrInvalidGrid, spec.CellSize)
	}
	if len(spec.Elevation) != n {
		return nil, fmt.Errorf("%w: elevation has %d values, want %d", ErrInvalidGrid, len(spec.Elevation), n)
	}
	if len(spec.Obstacle) != n {
		return nil, fmt.Errorf("%w: obstacle has %d values, want %d", ErrInvalidGrid, len(spec.Obstacle), n)
	}
	if spec.LandCover != nil && len(spec.LandCover) != n {
		return nil, fmt.Errorf("%w: land cover has %d values, want %d", ErrInvalidGrid, len(spec.LandCover), n)
	}

	g := &Grid{
		width:     spec.Width,
		height:    spec.Height,
		cellSize:  spec.CellSize,
		center:    spec.Center,
		elevation: append([]float64(nil), spec.Elevation...),
		obstacle:  append([]float64(nil), spec.Obstacle...),
		landCover: make([]LandCover, n),
	}
	if spec.LandCover != nil {
		copy(g.landCover, spec.LandCover)
	}

	g.minElevation, g.maxElevation = math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		z, h := g.elevation[i], g.obstacle[i]
		if math.IsNaN(z) || math.IsInf(z, 0) {
			x, y := g.XY(i)
			return nil, fmt.Errorf("%w: elevation non-finite at (%d,%d)", ErrInvalidGrid, x, y)
		}
		if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 {
			x, y := g.XY(i)
			return nil, fmt.Errorf("%w: obstacle height %g at (%d,%d)", ErrInvalidGrid, h, x, y)
		}
		g.minElevation = math.Min(g.minElevation, z)
		g.maxElevation = math.Max(g.maxElevation, z)
		if h > 0 {
			g.obstacleCount++
			g.maxObstacle = math.Max(g.maxObstacle, h)
		}
	}
	g.labelBuildings()
	return g, nil
}

// labelBuildings assigns a building id to every 4-connected obstacle component.
func (g *Grid) labelBuildings() {
	g.buildingID = make([]int32, len(g.obstacle))
	for i := range g.buildingID {
		g.buildingID[i] = -1
	}
	var queue []int
	for start := range g.obstacle {
		if g.obstacle[start] <= 0 || g.buildingID[start] >= 0 {
			continue
		}
		id := int32(g.buildingCount)
		g.buildingCount++
		g.buildingID[start] = id
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			g.Neighbors4(i, func(j int) {
				if g.obstacle[j] > 0 && g.buildingID[j] < 0 {
					g.buildingID[j] = id
					queue = append(queue, j)
				}
			})
		}
	}
}

func (g *Grid) Width() int        { return g.width }
func (g *Grid) Height() int       { return g.height }
func (g *Grid) Len() int          { return g.width * g.height }
func (g *Grid) CellSize() float64 { return g.cellSize }
func (g *Grid) Center() GeoRef    { return g.center }

// CellArea returns the area of one cell in m².
func (g *Grid) CellArea() float64 { return g.cellSize * g.cellSize }

// AreaKm2 returns the domain area in km².
func (g *Grid) AreaKm2() float64 { return float64(g.Len()) * g.CellArea() / 1e6 }

// Index returns the linear index of cell (x, y).
func (g *Grid) Index(x, y int) int { return y*g.width + x }

// XY returns the column and row of linear index i.
func (g *Grid) XY(i int) (x, y int) { return i % g.width, i / g.width }

// InBounds reports whether (x, y) lies inside the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

func (g *Grid) Elevation(i int) float64      { return g.elevation[i] }
func (g *Grid) ObstacleHeight(i int) float64 { return g.obstacle[i] }
func (g *Grid) IsObstacle(i int) bool        { return g.obstacle[i] > 0 }
func (g *Grid) LandCover(i int) LandCover    { return g.landCover[i] }

// BuildingID returns the building label of cell i, or -1 for open cells.
func (g *Grid) BuildingID(i int) int { return int(g.buildingID[i]) }

func (g *Grid) BuildingCount() int         { return g.buildingCount }
func (g *Grid) ObstacleCount() int         { return g.obstacleCount }
func (g *Grid) OpenCount() int             { return g.Len() - g.obstacleCount }
func (g *Grid) MaxObstacleHeight() float64 { return g.maxObstacle }

// ElevationRange returns the lowest and highest terrain elevation.
func (g *Grid) ElevationRange() (lo, hi float64) { return g.minElevation, g.maxElevation }

// Neighbors4 calls fn for each in-bounds von Neumann neighbour of cell i.
func (g *Grid) Neighbors4(i int, fn func(j int)) {
	x, y := g.XY(i)
	if x > 0 {
		fn(i - 1)
	}
	if x < g.width-1 {
		fn(i + 1)
	}
	if y > 0 {
		fn(i - g.width)
	}
	if y < g.height-1 {
		fn(i + g.width)
	}
}

// CellLatLng returns the WGS84 position of the centre of cell i using an
// equirectangular projection around the domain centre.
func (g *Grid) CellLatLng(i int) (lat, lng float64) {
	x, y := g.XY(i)
	east := (float64(x) + 0.5 - float64(g.width)/2) * g.cellSize
	north := (float64(g.height)/2 - float64(y) - 0.5) * g.cellSize
	lat = g.center.Lat + north/metresPerDegree
	lng = g.center.Lng + east/(metresPerDegree*math.Cos(g.center.Lat*math.Pi/180))
	return lat, lng
}

// Info summarises the grid for run reports.
func (g *Grid) Info() DomainInfo {
	return DomainInfo{
		Width:     g.width,
		Height:    g.height,
		CellSizeM: g.cellSize,
		Center:    g.center,
		AreaKm2:   g.AreaKm2(),
		Buildings: g.buildingCount,
		Obstacles: g.obstacleCount,
	}
}

// DomainInfo is the serialisable description of a grid domain.
type DomainInfo struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	CellSizeM float64 `json:"cell_size_m"`
	Center    GeoRef  `json:"center"`
	AreaKm2   float64 `json:"area_km2"`
	Buildings int     `json:"buildings"`
	Obstacles int     `json:"obstacle_cells"`
}
