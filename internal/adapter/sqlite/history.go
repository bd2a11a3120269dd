// Package sqlite keeps a history of runs and their scenario outcomes in a
// SQLite database.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/hazard-sim/internal/assembler"
	"github.com/couchcryptid/hazard-sim/internal/domain"
)

// DB wraps a SQLite connection holding run history.
type DB struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

// RunRow is one recorded run.
type RunRow struct {
	RunID         string    `db:"run_id" json:"run_id"`
	StartedAt     time.Time `db:"-" json:"started_at"`
	FinishedAt    time.Time `db:"-" json:"finished_at"`
	Location      string    `db:"location" json:"location,omitempty"`
	ReferenceWind string    `db:"reference_wind" json:"reference_wind"`
	Width         int       `db:"width" json:"width"`
	Height        int       `db:"height" json:"height"`
	CellSizeM     float64   `db:"cell_size_m" json:"cell_size_m"`
	Succeeded     int       `db:"succeeded" json:"succeeded"`
	Failed        int       `db:"failed" json:"failed"`
	Rejected      int       `db:"rejected" json:"rejected"`
	Cancelled     int       `db:"cancelled" json:"cancelled"`

	StartedMS  int64 `db:"started_ms" json:"-"`
	FinishedMS int64 `db:"finished_ms" json:"-"`
}

// ScenarioRow is one scenario outcome of a recorded run.
type ScenarioRow struct {
	RunID      string          `db:"run_id" json:"run_id"`
	Module     domain.Module   `db:"module" json:"module"`
	Key        string          `db:"scenario_key" json:"key"`
	Name       string          `db:"name" json:"name"`
	Status     domain.Status   `db:"status" json:"status"`
	Error      string          `db:"error" json:"error,omitempty"`
	DurationMS int64           `db:"duration_ms" json:"duration_ms"`
	Iterations int             `db:"iterations" json:"iterations"`
	Summary    json.RawMessage `db:"-" json:"summary,omitempty"`
	FinishedAt time.Time       `db:"-" json:"finished_at"`

	SummaryJSON string `db:"summary_json" json:"-"`
	FinishedMS  int64  `db:"finished_ms" json:"-"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent publishes.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, logger: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CheckReadiness pings the database.
func (db *DB) CheckReadiness(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_ms INTEGER NOT NULL,
		finished_ms INTEGER NOT NULL,
		location TEXT NOT NULL,
		reference_wind TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		cell_size_m REAL NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		cancelled INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scenarios (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		module TEXT NOT NULL,
		scenario_key TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		finished_ms INTEGER NOT NULL,
		summary_json TEXT NOT NULL,
		PRIMARY KEY (run_id, module, scenario_key)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_ms);
	CREATE INDEX IF NOT EXISTS idx_scenarios_key ON scenarios(module, scenario_key, finished_ms);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Publish records the run; it implements pipeline.Publisher.
func (db *DB) Publish(ctx context.Context, a *assembler.Assembler) error {
	return db.RecordRun(ctx, a)
}

// RecordRun stores the run and one row per scenario in a single transaction.
// Recording the same run twice replaces the earlier rows.
func (db *DB) RecordRun(ctx context.Context, a *assembler.Assembler) error {
	report := a.Report()

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("clear scenarios: %w", err)
	}
	_, err = tx.NamedExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, started_ms, finished_ms, location, reference_wind, width, height,
		 cell_size_m, succeeded, failed, rejected, cancelled)
		VALUES (:run_id, :started_ms, :finished_ms, :location, :reference_wind, :width, :height,
		 :cell_size_m, :succeeded, :failed, :rejected, :cancelled)`,
		RunRow{
			RunID:         report.RunID,
			StartedMS:     report.StartedAt.UnixMilli(),
			FinishedMS:    report.FinishedAt.UnixMilli(),
			Location:      report.Location,
			ReferenceWind: report.ReferenceWind,
			Width:         report.Domain.Width,
			Height:        report.Domain.Height,
			CellSizeM:     report.Domain.CellSizeM,
			Succeeded:     report.Count(domain.StatusSucceeded),
			Failed:        report.Count(domain.StatusFailed),
			Rejected:      report.Count(domain.StatusRejected),
			Cancelled:     report.Count(domain.StatusCancelled),
		})
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO scenarios
		(run_id, module, scenario_key, name, status, error, duration_ms, iterations, finished_ms, summary_json)
		VALUES (:run_id, :module, :scenario_key, :name, :status, :error, :duration_ms, :iterations, :finished_ms, :summary_json)`)
	if err != nil {
		return fmt.Errorf("prepare scenario insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Results {
		if r.Module() == "" {
			continue
		}
		row, err := scenarioRow(a, report.RunID, r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert scenario %s/%s: %w", r.Module(), r.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db.logger.Info("run recorded", "run_id", report.RunID, "scenarios", len(report.Results))
	return nil
}

func scenarioRow(a *assembler.Assembler, runID string, r domain.ScenarioResult) (ScenarioRow, error) {
	row := ScenarioRow{
		RunID:       runID,
		Module:      r.Module(),
		Key:         r.Key(),
		Name:        r.Scenario.Name,
		Status:      r.Status,
		Error:       r.Error,
		Iterations:  r.Iterations(),
		FinishedMS:  r.FinishedAt.UnixMilli(),
		SummaryJSON: "null",
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		row.DurationMS = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	if r.Succeeded() {
		doc, err := a.ScenarioDocument(r.Module(), r.Key())
		if err != nil {
			return ScenarioRow{}, err
		}
		raw, err := json.Marshal(doc.Summary)
		if err != nil {
			return ScenarioRow{}, fmt.Errorf("encode summary %s/%s: %w", r.Module(), r.Key(), err)
		}
		row.SummaryJSON = string(raw)
	}
	return row, nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	var rows []RunRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT
		run_id, started_ms, finished_ms, location, reference_wind, width, height,
		cell_size_m, succeeded, failed, rejected, cancelled
		FROM runs ORDER BY finished_ms DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	for i := range rows {
		rows[i].StartedAt = time.UnixMilli(rows[i].StartedMS).UTC()
		rows[i].FinishedAt = time.UnixMilli(rows[i].FinishedMS).UTC()
	}
	return rows, nil
}

// ScenarioHistory returns up to limit outcomes of one scenario across runs,
// newest first.
func (db *DB) ScenarioHistory(ctx context.Context, m domain.Module, key string, limit int) ([]ScenarioRow, error) {
	var rows []ScenarioRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT
		run_id, module, scenario_key, name, status, error, duration_ms, iterations, finished_ms, summary_json
		FROM scenarios WHERE module = ? AND scenario_key = ?
		ORDER BY finished_ms DESC, run_id LIMIT ?`, string(m), key, limit)
	if err != nil {
		return nil, fmt.Errorf("select scenario history: %w", err)
	}
	for i := range rows {
		rows[i].FinishedAt = time.UnixMilli(rows[i].FinishedMS).UTC()
		if rows[i].SummaryJSON != "null" {
			rows[i].Summary = json.RawMessage(rows[i].SummaryJSON)
		}
	}
	return rows, nil
}
