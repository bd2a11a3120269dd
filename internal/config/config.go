package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Inputs and outputs. An empty DomainManifest means the domain is
	// generated from the terrain settings; an empty ScenarioCatalog means
	// the built-in reference catalog.
	DomainManifest  string
	ScenarioCatalog string
	OutputDir       string
	ReferenceWind   string
	GeoJSONStride   int

	ScenarioWorkers int
	CellWorkers     int // 0 means GOMAXPROCS

	// Synthetic terrain.
	TerrainSeed   int64
	TerrainWidth  int
	TerrainHeight int
	CellSize      float64

	// Solver tuning.
	FloodMaxSteps          int
	FloodManningN          float64
	FloodInfiltrationMMH   float64
	FloodDrainageMMH       float64
	FloodRunoffCoefficient float64
	FloodPostStormHours    float64
	WindMaxPasses          int
	WindTolerance          float64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ResultCacheSize int

	// Kafka result publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int

	// DBPath enables the SQLite run history when set.
	DBPath string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err2 := time.ParseDuration(mapboxTimeoutStr)
	if err2 != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	p := &parser{}
	cfg := &Config{
		DomainManifest:  os.Getenv("DOMAIN_MANIFEST"),
		ScenarioCatalog: os.Getenv("SCENARIO_CATALOG"),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		ReferenceWind:   os.Getenv("REFERENCE_WIND_SCENARIO"),
		GeoJSONStride:   p.int("GEOJSON_STRIDE", 4, 1),

		ScenarioWorkers: p.int("SCENARIO_WORKERS", 4, 1),
		CellWorkers:     p.int("CELL_WORKERS", 0, 0),

		TerrainSeed:   int64(p.int("TERRAIN_SEED", 42, 0)),
		TerrainWidth:  p.int("TERRAIN_WIDTH", 200, 3),
		TerrainHeight: p.int("TERRAIN_HEIGHT", 200, 3),
		CellSize:      p.float("CELL_SIZE", 5, 0.1),

		FloodMaxSteps:          p.int("FLOOD_MAX_STEPS", 200_000, 1),
		FloodManningN:          p.float("FLOOD_MANNING_N", 0.035, 0.001),
		FloodInfiltrationMMH:   p.float("FLOOD_INFILTRATION_MM_H", 8, 0),
		FloodDrainageMMH:       p.float("FLOOD_DRAINAGE_MM_H", 40, 0),
		FloodRunoffCoefficient: p.float("FLOOD_RUNOFF_COEFFICIENT", 0.75, 0),
		FloodPostStormHours:    p.float("FLOOD_POST_STORM_HOURS", 0, 0),
		WindMaxPasses:          p.int("WIND_MAX_PASSES", 400, 1),
		WindTolerance:          p.float("WIND_TOLERANCE", 1e-3, 1e-9),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		ResultCacheSize: p.int("RESULT_CACHE_SIZE", 64, 1),

		KafkaEnabled: p.bool("KAFKA_ENABLED", false),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "hazard-scenario-results"),
		BatchSize:    batchSize,

		DBPath: os.Getenv("DB_PATH"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: p.int("MAPBOX_CACHE_SIZE", 1000, 1),
	}
	if p.err != nil {
		return nil, p.err
	}

	if cfg.FloodRunoffCoefficient > 1 {
		return nil, errors.New("FLOOD_RUNOFF_COEFFICIENT must not exceed 1")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// parser reads numeric variables and keeps the first error.
type parser struct{ err error }

func (p *parser) int(key string, def, minimum int) int {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		p.err = fmt.Errorf("invalid %s %q: must be an integer >= %d", key, s, minimum)
		return def
	}
	return n
}

func (p *parser) float(key string, def, minimum float64) float64 {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !(v >= minimum) {
		p.err = fmt.Errorf("invalid %s %q: must be a number >= %g", key, s, minimum)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q: must be true or false", key, s)
		return def
	}
	return v
}
