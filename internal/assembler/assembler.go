// Package assembler collects scenario results of one run and renders them as
// JSON statistics documents and GeoJSON point collections.
package assembler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

var (
	// ErrScenarioNotFound reports a module/key pair absent from the run.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrNoResult reports a scenario that did not succeed and has no fields.
	ErrNoResult = errors.New("scenario has no result")
)

// Assembler accumulates the results of one run. Collect is safe for
// concurrent use; readers see results in catalog order.
type Assembler struct {
	grid *domain.Grid

	mu      sync.RWMutex
	report  domain.RunReport
	order   map[string]int
	results map[string]domain.ScenarioResult
}

// New starts assembling the run described by meta over grid g. Scenarios
// listed in cat keep their catalog position in every rendered document.
func New(g *domain.Grid, meta domain.RunReport, cat domain.Catalog) *Assembler {
	a := &Assembler{
		grid:    g,
		report:  meta,
		order:   make(map[string]int, len(cat.Scenarios)),
		results: make(map[string]domain.ScenarioResult, len(cat.Scenarios)),
	}
	a.report.Results = nil
	if a.report.Domain == (domain.DomainInfo{}) {
		a.report.Domain = g.Info()
	}
	for i, s := range cat.Scenarios {
		a.order[resultKey(s.Module(), s.Key())] = i
	}
	return a
}

func resultKey(m domain.Module, key string) string { return string(m) + "/" + key }

// Collect records one scenario result, replacing any earlier result for the
// same module and key.
func (a *Assembler) Collect(r domain.ScenarioResult) {
	k := resultKey(r.Module(), r.Key())
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.order[k]; !ok {
		a.order[k] = len(a.order)
	}
	a.results[k] = r
}

// Finish stamps the run end time.
func (a *Assembler) Finish(at time.Time) {
	a.mu.Lock()
	a.report.FinishedAt = at
	a.mu.Unlock()
}

// Grid returns the domain the run was computed on.
func (a *Assembler) Grid() *domain.Grid { return a.grid }

// Report returns the run report with results in catalog order.
func (a *Assembler) Report() domain.RunReport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r := a.report
	r.Results = a.sortedLocked()
	return r
}

// Result returns the collected result for module m and key.
func (a *Assembler) Result(m domain.Module, key string) (domain.ScenarioResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.results[resultKey(m, key)]
	if !ok {
		return domain.ScenarioResult{}, fmt.Errorf("%w: %s/%s", ErrScenarioNotFound, m, key)
	}
	return r, nil
}

func (a *Assembler) sortedLocked() []domain.ScenarioResult {
	out := make([]domain.ScenarioResult, 0, len(a.results))
	for _, r := range a.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return a.order[resultKey(out[i].Module(), out[i].Key())] < a.order[resultKey(out[j].Module(), out[j].Key())]
	})
	return out
}
