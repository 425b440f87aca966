package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"happycast/domain/backtest"
	"happycast/domain/core"
	"happycast/internal/errors"
	"happycast/ports"

	"github.com/jmoiron/sqlx"
)

// ResultRepository implements ports.ResultRepository on sqlx. Queries are
// written with ? placeholders and rebound for the connected driver.
type ResultRepository struct {
	db *sqlx.DB
}

var _ ports.ResultRepository = (*ResultRepository)(nil)

// NewResultRepository creates a repository over an open, migrated database
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

type runRecord struct {
	ID         string       `db:"id"`
	Model      string       `db:"model"`
	Status     string       `db:"status"`
	ConfigHash string       `db:"config_hash"`
	Config     string       `db:"config"`
	Evaluated  int          `db:"evaluated"`
	Failed     int          `db:"failed"`
	Skipped    int          `db:"skipped"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

func (r runRecord) toRun() *backtest.Run {
	run := &backtest.Run{
		ID:         core.RunID(r.ID),
		Model:      r.Model,
		Status:     backtest.RunStatus(r.Status),
		ConfigHash: core.Hash(r.ConfigHash),
		Config:     []byte(r.Config),
		Evaluated:  r.Evaluated,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		StartedAt:  r.StartedAt.UTC(),
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time.UTC()
		run.FinishedAt = &t
	}
	return run
}

const runColumns = `id, model, status, config_hash, config, evaluated, failed, skipped, started_at, finished_at`

// CreateRun inserts a new run
func (r *ResultRepository) CreateRun(ctx context.Context, run *backtest.Run) error {
	config := string(run.Config)
	if config == "" {
		config = "{}"
	}
	var finished interface{}
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO backtest_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID.String(), run.Model, string(run.Status), run.ConfigHash.String(), config,
		run.Evaluated, run.Failed, run.Skipped, run.StartedAt.UTC(), finished)
	if err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to create run %s", run.ID), err)
	}
	return nil
}

// SaveRows replaces the stored rows of a run with rows, keeping their order
func (r *ResultRepository) SaveRows(ctx context.Context, runID core.RunID, rows []backtest.MetricRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM backtest_results WHERE run_id = ?`), runID.String()); err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to clear rows of run %s", runID), err)
	}

	insert := tx.Rebind(`INSERT INTO backtest_results (run_id, ordinal, country, metric, value) VALUES (?, ?, ?, ?, ?)`)
	for pos, row := range rows {
		for metric, value := range row.Values {
			if _, err := tx.ExecContext(ctx, insert, runID.String(), pos, string(row.Country), metric, value); err != nil {
				return errors.DatabaseError(fmt.Sprintf("failed to save %s/%s of run %s", row.Country, metric, runID), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit rows", err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run
func (r *ResultRepository) FinishRun(ctx context.Context, run *backtest.Run) error {
	var finished interface{}
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE backtest_runs
		SET status = ?, evaluated = ?, failed = ?, skipped = ?, finished_at = ?
		WHERE id = ?`),
		string(run.Status), run.Evaluated, run.Failed, run.Skipped, finished, run.ID.String())
	if err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to finish run %s", run.ID), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return runNotFound(run.ID)
	}
	return nil
}

// GetRun loads one run
func (r *ResultRepository) GetRun(ctx context.Context, runID core.RunID) (*backtest.Run, error) {
	var rec runRecord
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`SELECT `+runColumns+` FROM backtest_runs WHERE id = ?`), runID.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, runNotFound(runID)
	}
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to load run %s", runID), err)
	}
	return rec.toRun(), nil
}

// ListRuns returns runs newest first. An empty model lists every model; a
// non-positive limit returns all runs.
func (r *ResultRepository) ListRuns(ctx context.Context, model string, limit int) ([]*backtest.Run, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs`
	var args []interface{}
	if model != "" {
		query += ` WHERE model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var recs []runRecord
	if err := r.db.SelectContext(ctx, &recs, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	runs := make([]*backtest.Run, len(recs))
	for i, rec := range recs {
		runs[i] = rec.toRun()
	}
	return runs, nil
}

type resultRecord struct {
	Ordinal int     `db:"ordinal"`
	Country string  `db:"country"`
	Metric  string  `db:"metric"`
	Value   float64 `db:"value"`
}

// LoadTable rebuilds the result table of a run in saved row order
func (r *ResultRepository) LoadTable(ctx context.Context, runID core.RunID) (*backtest.ResultTable, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var recs []resultRecord
	err = r.db.SelectContext(ctx, &recs, r.db.Rebind(`
		SELECT ordinal, country, metric, value FROM backtest_results
		WHERE run_id = ?
		ORDER BY ordinal, metric`), runID.String())
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to load rows of run %s", runID), err)
	}

	table := backtest.NewModelTable(run.Model)
	var current *backtest.MetricRow
	flush := func() {
		if current != nil {
			table.Append(*current)
		}
	}
	lastPos := -1
	for _, rec := range recs {
		if rec.Ordinal != lastPos {
			flush()
			current = &backtest.MetricRow{Country: core.Country(rec.Country), Values: map[string]float64{}}
			lastPos = rec.Ordinal
		}
		current.Values[rec.Metric] = rec.Value
	}
	flush()
	return table, nil
}

// LatestTable loads the table of the most recent finished run of a model
func (r *ResultRepository) LatestTable(ctx context.Context, model string) (*backtest.ResultTable, error) {
	var id string
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`
		SELECT id FROM backtest_runs
		WHERE model = ? AND status = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1`), model, string(backtest.RunFinished))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: no finished %s run", core.ErrRunNotFound, model))
	}
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to find latest %s run", model), err)
	}
	return r.LoadTable(ctx, core.RunID(id))
}

func runNotFound(id core.RunID) error {
	return errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: %s", core.ErrRunNotFound, id))
}
