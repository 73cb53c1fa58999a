package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/metrics"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	config_digest   TEXT NOT NULL,
	config          TEXT NOT NULL,
	target_coverage REAL NOT NULL,
	entities        INTEGER NOT NULL,
	folds_completed INTEGER NOT NULL,
	folds_skipped   INTEGER NOT NULL,
	folds_degenerate INTEGER NOT NULL,
	coverage        REAL NOT NULL,
	mean_width      REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS predictions (
	run_id    TEXT NOT NULL,
	entity    TEXT NOT NULL,
	ts        TEXT NOT NULL,
	fold      INTEGER NOT NULL,
	tau       REAL NOT NULL,
	y_true    REAL NOT NULL,
	y_pred    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS predictions_run ON predictions (run_id, entity, fold);
CREATE TABLE IF NOT EXISTS metrics (
	run_id        TEXT NOT NULL,
	entity        TEXT NOT NULL,
	fold          INTEGER NOT NULL,
	tau           TEXT NOT NULL,
	pinball       REAL,
	coverage      REAL,
	width         REAL,
	lambda        REAL,
	lambda_search REAL,
	degenerate    INTEGER
);
CREATE INDEX IF NOT EXISTS metrics_run ON metrics (run_id, entity, fold);
`

// SQLite appends a run and its rows to a database file.
type SQLite struct {
	Path string
}

// Name implements Writer.
func (s SQLite) Name() string { return "sqlite" }

// Write implements Writer. Everything is inserted in one transaction.
func (s SQLite) Write(ctx context.Context, a *Artifacts) error {
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sum := a.Summary
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, config_digest, config, target_coverage,
			entities, folds_completed, folds_skipped, folds_degenerate, coverage, mean_width)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, fmtTime(sum.Started), fmtTime(sum.Finished), a.ConfigDigest, a.ConfigYAML, sum.TargetCoverage,
		sum.Entities, sum.FoldsCompleted, sum.FoldsSkipped, sum.FoldsDegenerate, sum.Coverage, sum.MeanWidth,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	pred, err := tx.PrepareContext(ctx,
		`INSERT INTO predictions (run_id, entity, ts, fold, tau, y_true, y_pred) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare predictions: %w", err)
	}
	defer func() { _ = pred.Close() }()
	for _, r := range a.Predictions {
		if _, err := pred.ExecContext(ctx, sum.RunID, r.Entity, fmtTime(r.Timestamp), r.Fold, r.Tau, r.YTrue, r.YPred); err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
	}

	met, err := tx.PrepareContext(ctx,
		`INSERT INTO metrics (run_id, entity, fold, tau, pinball, coverage, width, lambda, lambda_search, degenerate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare metrics: %w", err)
	}
	defer func() { _ = met.Close() }()
	for _, m := range a.Metrics {
		var pinball, coverage, width, lambda, search sql.NullFloat64
		var degenerate sql.NullBool
		if m.Interval {
			coverage = sql.NullFloat64{Float64: m.Coverage, Valid: true}
			width = sql.NullFloat64{Float64: m.Width, Valid: true}
			lambda = sql.NullFloat64{Float64: m.Lambda, Valid: true}
			search = sql.NullFloat64{Float64: m.LambdaSearch, Valid: true}
			degenerate = sql.NullBool{Bool: m.Degenerate, Valid: true}
		} else {
			pinball = sql.NullFloat64{Float64: m.Pinball, Valid: true}
		}
		if _, err := met.ExecContext(ctx, sum.RunID, m.Entity, m.Fold, m.Label(),
			pinball, coverage, width, lambda, search, degenerate); err != nil {
			return fmt.Errorf("insert metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordRowsWritten("predictions_sqlite", len(a.Predictions))
	metrics.RecordRowsWritten("metrics_sqlite", len(a.Metrics))
	return nil
}
