package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/hazard-sim/internal/assembler"
	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/observability"
)

// FloodRunner solves one flood scenario.
type FloodRunner interface {
	Run(ctx context.Context, g *domain.Grid, f domain.FloodForcing) (*domain.FloodResult, error)
}

// WindRunner solves one wind scenario.
type WindRunner interface {
	Run(ctx context.Context, g *domain.Grid, f domain.WindForcing) (*domain.WindResult, error)
}

// ThermalRunner solves one thermal scenario against a wind field.
type ThermalRunner interface {
	Run(ctx context.Context, g *domain.Grid, f domain.ThermalForcing, wind *domain.WindField) (*domain.ThermalResult, error)
}

// Publisher delivers a finished run somewhere (files, Kafka, run history).
type Publisher interface {
	Publish(ctx context.Context, a *assembler.Assembler) error
}

type namedPublisher struct {
	name string
	pub  Publisher
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds the number of scenarios solved concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithGeocoder labels each run with the place name of the domain centre.
func WithGeocoder(g domain.Geocoder) Option {
	return func(p *Pipeline) { p.geocoder = g }
}

// WithPublisher appends a publisher invoked after every completed run.
func WithPublisher(name string, pub Publisher) Option {
	return func(p *Pipeline) { p.publishers = append(p.publishers, namedPublisher{name: name, pub: pub}) }
}

// WithPublishRetry sets how often a failing publisher is retried and the
// initial backoff between attempts.
func WithPublishRetry(attempts int, backoff time.Duration) Option {
	return func(p *Pipeline) {
		if attempts > 0 {
			p.publishAttempts = attempts
		}
		p.publishBackoff = backoff
	}
}

// Pipeline orchestrates a catalog run across the three solvers.
type Pipeline struct {
	flood   FloodRunner
	wind    WindRunner
	thermal ThermalRunner

	logger          *slog.Logger
	metrics         *observability.Metrics
	workers         int
	geocoder        domain.Geocoder
	publishers      []namedPublisher
	publishAttempts int
	publishBackoff  time.Duration

	ready  atomic.Bool
	latest atomic.Pointer[assembler.Assembler]
}

// New creates a Pipeline over the given solvers.
func New(flood FloodRunner, wind WindRunner, thermal ThermalRunner, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		flood:           flood,
		wind:            wind,
		thermal:         thermal,
		logger:          logger,
		metrics:         metrics,
		workers:         runtime.GOMAXPROCS(0),
		publishAttempts: 3,
		publishBackoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.geocoder != nil {
		p.metrics.GeocodeEnabled.Set(1)
	}
	return p
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no simulation run has completed yet")
	}
	return nil
}

// Latest returns the most recently completed run, or nil.
func (p *Pipeline) Latest() *assembler.Assembler { return p.latest.Load() }

// Run solves every scenario of cat over g. Scenario failures are recorded in
// the report and never abort the batch. A cancelled context marks the
// remaining scenarios cancelled and is returned alongside the partial run.
func (p *Pipeline) Run(ctx context.Context, g *domain.Grid, cat domain.Catalog) (*assembler.Assembler, error) {
	if err := cat.CheckUnique(); err != nil {
		return nil, err
	}

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ref := cat.ReferenceWindKey()
	meta := domain.RunReport{
		RunID:         uuid.NewString(),
		StartedAt:     domain.Now(),
		Domain:        g.Info(),
		Location:      domain.LabelLocation(ctx, g.Center(), p.geocoder, p.logger),
		ReferenceWind: ref,
	}
	a := assembler.New(g, meta, cat)
	logger := p.logger.With("run_id", meta.RunID)
	logger.Info("run started",
		"scenarios", len(cat.Scenarios),
		"cells", g.Len(),
		"workers", p.workers,
		"reference_wind", ref,
	)

	for _, s := range cat.Scenarios {
		if s.Module() == "" {
			a.Collect(p.finish(logger, domain.ScenarioResult{Scenario: s, StartedAt: domain.Now()}, s.Validate()))
		}
	}

	// Flood and wind are independent; thermal needs the reference wind field.
	var (
		mu      sync.Mutex
		refWind *domain.WindField
	)
	p.runPhase(ctx, logger, a, p.valid(logger, a, cat, domain.ModuleFlood, domain.ModuleWind), func(ctx context.Context, s domain.Scenario) domain.ScenarioResult {
		r := p.solve(ctx, g, s, nil)
		if r.Wind != nil && r.Key() == ref {
			mu.Lock()
			refWind = r.Wind.Field
			mu.Unlock()
		}
		return r
	})

	thermals := p.valid(logger, a, cat, domain.ModuleThermal)
	if refWind == nil && len(thermals) > 0 && ctx.Err() == nil {
		err := fmt.Errorf("%w: reference wind scenario %q has no result", domain.ErrMissingWindField, ref)
		for _, s := range thermals {
			a.Collect(p.finish(logger, domain.ScenarioResult{Scenario: s, StartedAt: domain.Now()}, err))
		}
		thermals = nil
	}
	p.runPhase(ctx, logger, a, thermals, func(ctx context.Context, s domain.Scenario) domain.ScenarioResult {
		return p.solve(ctx, g, s, refWind)
	})

	finished := domain.Now()
	a.Finish(finished)
	report := a.Report()
	logger.Info("run finished",
		"duration", finished.Sub(meta.StartedAt),
		"succeeded", report.Count(domain.StatusSucceeded),
		"failed", report.Count(domain.StatusFailed),
		"rejected", report.Count(domain.StatusRejected),
		"cancelled", report.Count(domain.StatusCancelled),
	)

	if err := ctx.Err(); err != nil {
		return a, fmt.Errorf("run %s cancelled: %w", meta.RunID, err)
	}

	p.metrics.RunDuration.Observe(finished.Sub(meta.StartedAt).Seconds())
	p.latest.Store(a)
	p.ready.Store(true)
	p.publish(ctx, logger, a)
	return a, nil
}

// valid returns the scenarios of the given modules that pass validation and
// records the rest as rejected.
func (p *Pipeline) valid(logger *slog.Logger, a *assembler.Assembler, cat domain.Catalog, modules ...domain.Module) []domain.Scenario {
	var out []domain.Scenario
	for _, s := range cat.Scenarios {
		if !slices.Contains(modules, s.Module()) {
			continue
		}
		if err := s.Validate(); err != nil {
			a.Collect(p.finish(logger, domain.ScenarioResult{Scenario: s, StartedAt: domain.Now()}, err))
			continue
		}
		out = append(out, s)
	}
	return out
}

// runPhase solves scenarios on a bounded pool and collects every result.
func (p *Pipeline) runPhase(ctx context.Context, logger *slog.Logger, a *assembler.Assembler, scenarios []domain.Scenario, fn func(context.Context, domain.Scenario) domain.ScenarioResult) {
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for _, s := range scenarios {
		if err := acquire(ctx, sem); err != nil {
			a.Collect(p.finish(logger, domain.ScenarioResult{Scenario: s, StartedAt: domain.Now()}, err))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			a.Collect(p.finish(logger, fn(ctx, s), nil))
		}()
	}
	wg.Wait()
}

// acquire takes a pool slot unless ctx is done first.
func acquire(ctx context.Context, sem chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case sem <- struct{}{}:
		if err := ctx.Err(); err != nil {
			<-sem
			return err
		}
		return nil
	}
}

// solve dispatches one validated scenario to its solver. Failed runs carry no
// partial output.
func (p *Pipeline) solve(ctx context.Context, g *domain.Grid, s domain.Scenario, wind *domain.WindField) domain.ScenarioResult {
	p.metrics.ScenariosInFlight.Inc()
	defer p.metrics.ScenariosInFlight.Dec()

	r := domain.ScenarioResult{Scenario: s, StartedAt: domain.Now()}
	var err error
	switch f := s.Forcing.(type) {
	case domain.FloodForcing:
		var res *domain.FloodResult
		if res, err = p.flood.Run(ctx, g, f); err == nil {
			r.Flood = res
		}
	case domain.WindForcing:
		var res *domain.WindResult
		if res, err = p.wind.Run(ctx, g, f); err == nil {
			if res.Field != nil {
				res.Field.Scenario = s.Key()
			}
			r.Wind = res
		}
	case domain.ThermalForcing:
		var res *domain.ThermalResult
		if res, err = p.thermal.Run(ctx, g, f, wind); err == nil {
			r.Thermal = res
		}
	default:
		err = fmt.Errorf("%w: unsupported forcing %T", domain.ErrInvalidScenario, s.Forcing)
	}
	r.FinishedAt = domain.Now()
	if err != nil {
		r.Error = err.Error()
		r.Status = classify(err)
		var ie *domain.InstabilityError
		if errors.As(err, &ie) {
			r.Diagnostic = &domain.Diagnostic{Step: ie.Step, Cell: ie.Cell, X: ie.X, Y: ie.Y, Quantity: ie.Quantity, Value: ie.Value}
		}
		return r
	}
	r.Status = domain.StatusSucceeded
	return r
}

// classify maps a scenario error onto its terminal status.
func classify(err error) domain.Status {
	switch {
	case domain.IsRejection(err):
		return domain.StatusRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.StatusCancelled
	default:
		return domain.StatusFailed
	}
}

// finish stamps err onto r when given, then logs and counts the outcome.
func (p *Pipeline) finish(logger *slog.Logger, r domain.ScenarioResult, err error) domain.ScenarioResult {
	if err != nil {
		r.Status = classify(err)
		r.Error = err.Error()
		if r.FinishedAt.IsZero() {
			r.FinishedAt = r.StartedAt
		}
	}

	module := string(r.Module())
	p.metrics.ScenariosTotal.WithLabelValues(module, string(r.Status)).Inc()
	attrs := []any{"module", module, "scenario", r.Key(), "status", r.Status}
	if !r.Succeeded() {
		logger.Warn("scenario did not succeed", append(attrs, "error", r.Error)...)
		return r
	}

	elapsed := r.FinishedAt.Sub(r.StartedAt)
	p.metrics.ScenarioDuration.WithLabelValues(module).Observe(elapsed.Seconds())
	if n := r.Iterations(); n > 0 {
		p.metrics.SolverIterations.WithLabelValues(module).Observe(float64(n))
	}
	logger.Info("scenario finished", append(attrs, "duration", elapsed, "iterations", r.Iterations())...)
	return r
}

// publish hands the run to every publisher. Failures are retried with
// exponential backoff, then logged and counted; they never fail the run.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, a *assembler.Assembler) {
	for _, np := range p.publishers {
		err := p.publishWithRetry(ctx, np.pub, a)
		outcome := "success"
		if err != nil {
			outcome = "error"
			logger.Error("publish failed", "publisher", np.name, "error", err)
		}
		p.metrics.PublishTotal.WithLabelValues(np.name, outcome).Inc()
	}
}

func (p *Pipeline) publishWithRetry(ctx context.Context, pub Publisher, a *assembler.Assembler) error {
	backoff := p.publishBackoff
	maxBackoff := 5 * time.Second
	var err error
	for attempt := 1; ; attempt++ {
		if err = pub.Publish(ctx, a); err == nil || attempt >= p.publishAttempts {
			return err
		}
		if !sleepWithContext(ctx, backoff) {
			return errors.Join(err, ctx.Err())
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
