// Command gendomain generates a synthetic urban domain and the reference
// scenario catalog as fixtures for hazardsim and the validate command.
//
// Usage:
//
//	go run ./cmd/gendomain \
//	  -out data/domain \
//	  -catalog data/scenarios.yaml \
//	  -seed 42 -width 200 -height 200 -cell-size 5
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/hazard-sim/internal/adapter/fs"
	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/terrain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	def := terrain.DefaultConfig()
	out := flag.String("out", "", "directory for the domain manifest and rasters")
	catalogOut := flag.String("catalog", "", "output path for the reference scenario catalog (optional)")
	name := flag.String("name", "synthetic town centre", "domain name written to the manifest")
	seed := flag.Int64("seed", def.Seed, "terrain noise seed")
	width := flag.Int("width", def.Width, "domain width in cells")
	height := flag.Int("height", def.Height, "domain height in cells")
	cellSize := flag.Float64("cell-size", def.CellSize, "cell edge length in metres")
	lat := flag.Float64("lat", def.Center.Lat, "latitude of the domain centre")
	lng := flag.Float64("lng", def.Center.Lng, "longitude of the domain centre")
	coverage := flag.Float64("coverage", def.Coverage, "share of city blocks carrying a building")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	cfg := def
	cfg.Seed = *seed
	cfg.Width, cfg.Height = *width, *height
	cfg.CellSize = *cellSize
	cfg.Center = domain.GeoRef{Lat: *lat, Lng: *lng}
	cfg.Coverage = *coverage

	g, err := terrain.Generate(cfg)
	if err != nil {
		return fmt.Errorf("generating terrain: %w", err)
	}

	path, err := fs.WriteDomain(*out, *name, g)
	if err != nil {
		return fmt.Errorf("writing domain: %w", err)
	}
	log.Printf("wrote domain manifest: %s", path)

	if *catalogOut != "" {
		if err := writeCatalog(*catalogOut, domain.ReferenceCatalog()); err != nil {
			return fmt.Errorf("writing catalog: %w", err)
		}
		log.Printf("wrote scenario catalog: %s", *catalogOut)
	}

	printStats(g)
	return nil
}

func writeCatalog(path string, cat domain.Catalog) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := fs.EncodeCatalog(cat)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

type coverCount struct {
	cover domain.LandCover
	count int
}

// printStats reports the figures test assertions depend on.
func printStats(g *domain.Grid) {
	info := g.Info()
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Cells: %d (%dx%d at %g m), area %.3f km²\n", g.Len(), info.Width, info.Height, info.CellSizeM, info.AreaKm2)
	fmt.Printf("Buildings: %d, obstacle cells: %d (%.1f%%)\n",
		info.Buildings, info.Obstacles, 100*float64(info.Obstacles)/float64(g.Len()))

	minZ, maxZ, tallest := g.Elevation(0), g.Elevation(0), 0.0
	covers := map[domain.LandCover]int{}
	for i := 0; i < g.Len(); i++ {
		minZ = min(minZ, g.Elevation(i))
		maxZ = max(maxZ, g.Elevation(i))
		tallest = max(tallest, g.ObstacleHeight(i))
		covers[g.LandCover(i)]++
	}
	fmt.Printf("Elevation: %.2f to %.2f m, tallest building %.1f m\n", minZ, maxZ, tallest)

	cc := make([]coverCount, 0, len(covers))
	for c, n := range covers {
		cc = append(cc, coverCount{c, n})
	}
	sort.Slice(cc, func(i, j int) bool { return cc[i].count > cc[j].count })
	fmt.Print("Land cover:")
	for _, c := range cc {
		fmt.Printf(" %s=%d", c.cover, c.count)
	}
	fmt.Println()
}
