package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard_sim"

// Metrics holds the Prometheus counters, histograms, and gauges for simulation runs.
type Metrics struct {
	ScenariosTotal    *prometheus.CounterVec   // labels: module, status={succeeded,failed,rejected,cancelled}
	ScenarioDuration  *prometheus.HistogramVec // labels: module
	SolverIterations  *prometheus.HistogramVec // labels: module
	ScenariosInFlight prometheus.Gauge
	PipelineRunning   prometheus.Gauge
	RunDuration       prometheus.Histogram

	// Publisher metrics.
	PublishTotal *prometheus.CounterVec // labels: publisher, outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// ResultCache counts rendered GeoJSON lookups served over HTTP.
	ResultCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all simulation metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScenariosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Scenarios finished by module and status.",
		}, []string{"module", "status"}),
		ScenarioDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of one scenario solve.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"module"}),
		SolverIterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solver_iterations",
			Help:      "Time steps (flood) or relaxation passes (wind) per scenario.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"module"}),
		ScenariosInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenarios_in_flight",
			Help:      "Scenarios currently being solved.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a catalog run is active, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete catalog run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Run publications by publisher and outcome.",
		}, []string{"publisher", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when location labelling is enabled, 0 otherwise.",
		}),
		ResultCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_total",
			Help:      "Rendered GeoJSON cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.ScenariosTotal,
		m.ScenarioDuration,
		m.SolverIterations,
		m.ScenariosInFlight,
		m.PipelineRunning,
		m.RunDuration,
		m.PublishTotal,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.ResultCache,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ScenariosTotal:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "scenarios_total"}, []string{"module", "status"}),
		ScenarioDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "scenario_duration_seconds"}, []string{"module"}),
		SolverIterations:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "solver_iterations"}, []string{"module"}),
		ScenariosInFlight:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "scenarios_in_flight"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		RunDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "run_duration_seconds"}),
		PublishTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "publish_total"}, []string{"publisher", "outcome"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}),
		GeocodeEnabled:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_enabled"}),
		ResultCache:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "result_cache_total"}, []string{"result"}),
	}
}
