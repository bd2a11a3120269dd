package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/hazard-sim/internal/adapter/fs"
	kafkaadapter "github.com/couchcryptid/hazard-sim/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-sim/internal/adapter/mapbox"
	"github.com/couchcryptid/hazard-sim/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/flood"
	"github.com/couchcryptid/hazard-sim/internal/observability"
	"github.com/couchcryptid/hazard-sim/internal/pipeline"
	"github.com/couchcryptid/hazard-sim/internal/terrain"
	"github.com/couchcryptid/hazard-sim/internal/thermal"
	"github.com/couchcryptid/hazard-sim/internal/wind"
)

// app holds the components built from the configuration.
type app struct {
	pipeline *pipeline.Pipeline
	history  *sqlite.DB
	closers  map[string]io.Closer
}

func newApp(metrics *observability.Metrics) (*app, error) {
	fp := flood.DefaultParams()
	fp.ManningN = cfg.FloodManningN
	fp.MaxSteps = cfg.FloodMaxSteps
	fp.PostStormHours = cfg.FloodPostStormHours
	fp.Losses = flood.Losses{
		InfiltrationMMH:   cfg.FloodInfiltrationMMH,
		DrainageMMH:       cfg.FloodDrainageMMH,
		RunoffCoefficient: cfg.FloodRunoffCoefficient,
	}
	fp.Workers = cfg.CellWorkers
	floodSolver, err := flood.NewSolver(fp, logger)
	if err != nil {
		return nil, fmt.Errorf("flood solver: %w", err)
	}

	wp := wind.DefaultParams()
	wp.MaxPasses = cfg.WindMaxPasses
	wp.Tolerance = cfg.WindTolerance
	wp.Workers = cfg.CellWorkers
	windSolver, err := wind.NewSolver(wp, logger)
	if err != nil {
		return nil, fmt.Errorf("wind solver: %w", err)
	}

	tp := thermal.DefaultParams()
	tp.Workers = cfg.CellWorkers
	thermalSolver, err := thermal.NewSolver(tp, logger)
	if err != nil {
		return nil, fmt.Errorf("thermal solver: %w", err)
	}

	a := &app{closers: map[string]io.Closer{}}
	opts := []pipeline.Option{
		pipeline.WithWorkers(cfg.ScenarioWorkers),
		pipeline.WithPublisher("fs", fs.NewWriter(cfg.OutputDir, cfg.GeoJSONStride, logger)),
	}

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		opts = append(opts, pipeline.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)))
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		a.closers["kafka writer"] = writer
		opts = append(opts, pipeline.WithPublisher("kafka", writer))
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	if cfg.DBPath != "" {
		db, err := sqlite.Open(cfg.DBPath, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("run history: %w", err)
		}
		a.history = db
		a.closers["run history"] = db
		opts = append(opts, pipeline.WithPublisher("sqlite", db))
		logger.Info("run history enabled", "path", cfg.DBPath)
	}

	a.pipeline = pipeline.New(floodSolver, windSolver, thermalSolver, logger, metrics, opts...)
	return a, nil
}

func (a *app) close() {
	for name, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.Error(name+" close error", "error", err)
		}
	}
}

// loadInputs reads the domain and catalog, generating the domain from the
// terrain settings and falling back to the reference catalog when no files
// are configured.
func loadInputs() (*domain.Grid, domain.Catalog, error) {
	var (
		g   *domain.Grid
		err error
	)
	if cfg.DomainManifest != "" {
		g, err = fs.LoadDomain(cfg.DomainManifest)
	} else {
		g, err = terrain.Generate(terrainConfig())
	}
	if err != nil {
		return nil, domain.Catalog{}, fmt.Errorf("load domain: %w", err)
	}

	cat, err := loadCatalog(cfg.ScenarioCatalog)
	if err != nil {
		return nil, domain.Catalog{}, err
	}
	logger.Info("inputs loaded",
		"domain", g.Info(),
		"scenarios", len(cat.Scenarios),
		"reference_wind", cat.ReferenceWind,
	)
	return g, cat, nil
}

func loadCatalog(path string) (domain.Catalog, error) {
	cat := domain.ReferenceCatalog()
	if path != "" {
		var err error
		if cat, err = fs.LoadCatalog(path); err != nil {
			return domain.Catalog{}, err
		}
	}
	if cfg.ReferenceWind != "" {
		cat.ReferenceWind = cfg.ReferenceWind
	}
	if len(cat.Scenarios) == 0 {
		return domain.Catalog{}, errors.New("scenario catalog is empty")
	}
	return cat, nil
}

func terrainConfig() terrain.Config {
	tc := terrain.DefaultConfig()
	tc.Width = cfg.TerrainWidth
	tc.Height = cfg.TerrainHeight
	tc.CellSize = cfg.CellSize
	tc.Seed = cfg.TerrainSeed
	return tc
}
