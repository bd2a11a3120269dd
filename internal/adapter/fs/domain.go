// Package fs reads grid domains and scenario catalogs from disk and writes run
// results as JSON and GeoJSON files.
package fs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// Manifest describes a grid domain stored as CSV rasters next to it. Raster
// paths are relative to the manifest file.
type Manifest struct {
	Name      string        `yaml:"name"`
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
	CellSizeM float64       `yaml:"cell_size_m"`
	Center    domain.GeoRef `yaml:"center"`
	Elevation string        `yaml:"elevation"`
	Obstacles string        `yaml:"obstacles"`
	LandCover string        `yaml:"land_cover,omitempty"`
}

// LoadDomain reads a manifest and its rasters and builds the grid.
func LoadDomain(path string) (*domain.Grid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse domain manifest %s: %w", path, err)
	}
	if m.Elevation == "" || m.Obstacles == "" {
		return nil, fmt.Errorf("%w: manifest %s needs elevation and obstacles rasters", domain.ErrInvalidGrid, path)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, fmt.Errorf("%w: manifest %s dimensions %dx%d", domain.ErrInvalidGrid, path, m.Width, m.Height)
	}

	dir := filepath.Dir(path)
	spec := domain.GridSpec{Width: m.Width, Height: m.Height, CellSize: m.CellSizeM, Center: m.Center}
	if spec.Elevation, err = readRaster(filepath.Join(dir, m.Elevation), m.Width, m.Height); err != nil {
		return nil, err
	}
	if spec.Obstacle, err = readRaster(filepath.Join(dir, m.Obstacles), m.Width, m.Height); err != nil {
		return nil, err
	}
	if m.LandCover != "" {
		codes, err := readRaster(filepath.Join(dir, m.LandCover), m.Width, m.Height)
		if err != nil {
			return nil, err
		}
		spec.LandCover = make([]domain.LandCover, len(codes))
		for i, c := range codes {
			if spec.LandCover[i], err = domain.ParseLandCover(int(c)); err != nil {
				return nil, fmt.Errorf("%s: %w", m.LandCover, err)
			}
		}
	}
	return domain.NewGrid(spec)
}

// readRaster reads a headerless CSV of height rows by width values, row 0
// being the northern edge.
func readRaster(path string, width, height int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = width
	reader.ReuseRecord = true
	reader.TrimLeadingSpace = true

	out := make([]float64, 0, width*height)
	for y := 0; ; y++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			if y != height {
				return nil, fmt.Errorf("%w: %s has %d rows, want %d", domain.ErrInvalidGrid, filepath.Base(path), y, height)
			}
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidGrid, filepath.Base(path), err)
		}
		if y >= height {
			return nil, fmt.Errorf("%w: %s has more than %d rows", domain.ErrInvalidGrid, filepath.Base(path), height)
		}
		for x, s := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s (%d,%d): %q", domain.ErrInvalidGrid, filepath.Base(path), x, y, s)
			}
			out = append(out, v)
		}
	}
}

// WriteDomain stores g as a manifest named domain.yaml plus CSV rasters in dir.
func WriteDomain(dir, name string, g *domain.Grid) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create domain dir: %w", err)
	}
	m := Manifest{
		Name:      name,
		Width:     g.Width(),
		Height:    g.Height(),
		CellSizeM: g.CellSize(),
		Center:    g.Center(),
		Elevation: "elevation.csv",
		Obstacles: "obstacles.csv",
		LandCover: "land_cover.csv",
	}
	rasters := map[string]func(int) string{
		m.Elevation: func(i int) string { return formatFloat(g.Elevation(i)) },
		m.Obstacles: func(i int) string { return formatFloat(g.ObstacleHeight(i)) },
		m.LandCover: func(i int) string { return strconv.Itoa(int(g.LandCover(i))) },
	}
	for file, cell := range rasters {
		if err := writeRaster(filepath.Join(dir, file), g, cell); err != nil {
			return "", err
		}
	}

	raw, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode domain manifest: %w", err)
	}
	path := filepath.Join(dir, "domain.yaml")
	if err := writeFileAtomic(path, raw); err != nil {
		return "", err
	}
	return path, nil
}

func writeRaster(path string, g *domain.Grid, cell func(int) string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create raster: %w", err)
	}
	w := csv.NewWriter(f)
	row := make([]string, g.Width())
	for y := 0; y < g.Height(); y++ {
		for x := range row {
			row[x] = cell(g.Index(x, y))
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write raster %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write raster %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
