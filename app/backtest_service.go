package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"happycast/domain/backtest"
	"happycast/domain/core"
	"happycast/domain/dataset"
	"happycast/domain/series"
	"happycast/internal"
	loop "happycast/internal/backtest"
	"happycast/internal/errors"
	"happycast/ports"
)

// BacktestService evaluates one forecaster across the countries of a dataset
// and collects a per-country result table
type BacktestService struct {
	runner *loop.Runner
	writer ports.ResultWriter
	repo   ports.ResultRepository
	logger *internal.Logger
	now    func() time.Time
}

// BacktestOptions control country selection and output of one run
type BacktestOptions struct {
	Column          string `json:"column"`
	MinPeriods      int    `json:"min_periods"`
	MaxCountries    int    `json:"max_countries"`
	CheckpointEvery int    `json:"checkpoint_every"`
	SortByRMSE      bool   `json:"sort_by_rmse"`
	OutputPath      string `json:"output_path"`
}

// DefaultBacktestOptions mirrors the batch defaults: happiness score, at least
// 8 periods, 30 countries, a checkpoint every 10 rows
func DefaultBacktestOptions(outputPath string) BacktestOptions {
	return BacktestOptions{
		Column:          dataset.ColumnHappiness,
		MinPeriods:      series.MinPeriods,
		MaxCountries:    30,
		CheckpointEvery: 10,
		OutputPath:      outputPath,
	}
}

// BacktestRequest is the input of one run
type BacktestRequest struct {
	Dataset    *dataset.Dataset
	Forecaster ports.Forecaster
	Options    BacktestOptions
}

// BacktestReport summarizes a finished run
type BacktestReport struct {
	RunID          core.RunID              `json:"run_id"`
	Model          string                  `json:"model"`
	Table          *backtest.ResultTable   `json:"table"`
	Evaluated      int                     `json:"evaluated"`
	Failed         int                     `json:"failed"`
	Skipped        int                     `json:"skipped"`
	Empty          int                     `json:"empty"`
	Fallbacks      int                     `json:"fallbacks"`
	Checkpoints    int                     `json:"checkpoints"`
	OutputPath     string                  `json:"output_path"`
	CheckpointPath string                  `json:"checkpoint_path"`
	ConfigHash     core.Hash               `json:"config_hash"`
	Persisted      bool                    `json:"persisted"`
	Duration       time.Duration           `json:"duration"`
	Failures       map[core.Country]string `json:"failures,omitempty"`
}

// NewBacktestService creates a service. repo may be nil to skip persistence.
func NewBacktestService(runner *loop.Runner, writer ports.ResultWriter, repo ports.ResultRepository, logger *internal.Logger) *BacktestService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &BacktestService{
		runner: runner,
		writer: writer,
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SummaryFile is the output file name of a model family's backtest summary
func SummaryFile(model string) string {
	return model + "_backtest_summary.csv"
}

// PartialPath returns the checkpoint path for an output file: name_partial.ext
func PartialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_partial" + ext
}

// Run iterates countries in sorted order until MaxCountries succeed. Short
// series are skipped silently, per-country failures are logged and skipped.
// The accumulated table is written even when the context is cancelled, in
// which case the context error is returned alongside the report.
func (s *BacktestService) Run(ctx context.Context, req BacktestRequest) (*BacktestReport, error) {
	if req.Dataset == nil || req.Forecaster == nil {
		return nil, errors.InvalidInput("dataset and forecaster are required")
	}
	opts := req.Options
	if opts.OutputPath == "" {
		return nil, errors.InvalidInput("output path is required")
	}
	if opts.Column == "" {
		opts.Column = dataset.ColumnHappiness
	}
	if opts.MinPeriods <= 0 {
		opts.MinPeriods = series.MinPeriods
	}
	if opts.MaxCountries <= 0 {
		opts.MaxCountries = 30
	}

	start := time.Now()
	model := req.Forecaster.Name()
	report := &BacktestReport{
		RunID:          core.NewRunID(),
		Model:          model,
		Table:          backtest.NewModelTable(model),
		OutputPath:     opts.OutputPath,
		CheckpointPath: PartialPath(opts.OutputPath),
		Failures:       make(map[core.Country]string),
	}

	run, repo, err := s.startRun(ctx, report, opts)
	if err != nil {
		return nil, err
	}
	report.ConfigHash = run.ConfigHash
	report.Persisted = repo != nil

	countries := req.Dataset.Countries()
	s.logger.Info("[BacktestService] run %s: %s over %d countries (max %d)", report.RunID, model, len(countries), opts.MaxCountries)

	var runErr error
	for i, country := range countries {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if report.Evaluated >= opts.MaxCountries {
			break
		}

		ts, err := req.Dataset.Series(country, opts.Column)
		if err != nil {
			report.Failed++
			report.Failures[country] = err.Error()
			s.logger.Warn("[BacktestService] failed %s: %v", country, err)
			continue
		}
		if !ts.Qualifies(opts.MinPeriods) {
			report.Skipped++
			continue
		}

		s.logger.Info("[BacktestService] Processing %d/%d: %s", i+1, len(countries), country)
		row, fallbacks, ok, err := s.evaluate(ctx, ts, req.Forecaster)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				runErr = ctxErr
				break
			}
			report.Failed++
			report.Failures[country] = err.Error()
			s.logger.Warn("[BacktestService] failed %s: %v", country, err)
			continue
		}
		if !ok {
			report.Empty++
			s.logger.Debug("[BacktestService] %s produced no evaluation points", country)
			continue
		}

		report.Table.Append(row)
		report.Evaluated++
		report.Fallbacks += fallbacks

		if opts.CheckpointEvery > 0 && report.Table.Len()%opts.CheckpointEvery == 0 {
			s.checkpoint(ctx, report, run, repo)
		}
	}

	if opts.SortByRMSE && report.Table.Len() > 0 {
		report.Table.SortBy(backtest.MetricColumn(model, "RMSE"))
	}

	writeCtx := context.WithoutCancel(ctx)
	if err := s.writer.WriteTable(writeCtx, opts.OutputPath, report.Table); err != nil {
		return report, errors.Wrapf(err, "failed to write %s", opts.OutputPath)
	}
	s.finishRun(writeCtx, report, run, repo)

	report.Duration = time.Since(start)
	s.logger.Info("[BacktestService] run %s done: %d evaluated, %d failed, %d skipped, %d fallback steps, summary written to %s",
		report.RunID, report.Evaluated, report.Failed, report.Skipped, report.Fallbacks, opts.OutputPath)
	return report, runErr
}

// evaluate backtests one series, converting panics into errors
func (s *BacktestService) evaluate(ctx context.Context, ts series.TimeSeries, f ports.Forecaster) (row backtest.MetricRow, fallbacks int, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	res, err := s.runner.Run(ctx, ts, f)
	if err != nil {
		return backtest.MetricRow{}, 0, false, err
	}
	if !res.Evaluated() {
		return backtest.MetricRow{}, 0, false, nil
	}
	modelScores, naiveScores, err := res.Score()
	if err != nil {
		return backtest.MetricRow{}, 0, false, err
	}
	return backtest.NewMetricRow(ts.Key, f.Name(), modelScores, naiveScores), res.Fallbacks, true, nil
}

func (s *BacktestService) checkpoint(ctx context.Context, report *BacktestReport, run *backtest.Run, repo ports.ResultRepository) {
	snapshot := report.Table.Snapshot()
	if err := s.writer.WriteTable(ctx, report.CheckpointPath, snapshot); err != nil {
		s.logger.Warn("[BacktestService] checkpoint %s failed: %v", report.CheckpointPath, err)
	} else {
		report.Checkpoints++
		s.logger.Debug("[BacktestService] checkpoint with %d rows written to %s", snapshot.Len(), report.CheckpointPath)
	}
	if repo != nil {
		if err := repo.SaveRows(ctx, run.ID, snapshot.Rows); err != nil {
			s.logger.Warn("[BacktestService] saving checkpoint rows of run %s failed: %v", run.ID, err)
		}
	}
}

type runFingerprint struct {
	Model   string          `json:"model"`
	Loop    loop.Config     `json:"loop"`
	Options BacktestOptions `json:"options"`
}

// startRun fingerprints the configuration and registers the run when a
// repository is configured. The returned repository is nil when the run is not
// persisted; a failing store disables persistence for this run only.
func (s *BacktestService) startRun(ctx context.Context, report *BacktestReport, opts BacktestOptions) (*backtest.Run, ports.ResultRepository, error) {
	fp := runFingerprint{Model: report.Model, Loop: s.runner.Config(), Options: opts}
	raw, err := json.Marshal(fp)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode run configuration")
	}
	run := &backtest.Run{
		ID:         report.RunID,
		Model:      report.Model,
		Status:     backtest.RunRunning,
		ConfigHash: core.NewHash(raw),
		Config:     raw,
		StartedAt:  s.now(),
	}
	if s.repo == nil {
		return run, nil, nil
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		s.logger.Warn("[BacktestService] result store unavailable, run %s is not persisted: %v", run.ID, err)
		return run, nil, nil
	}
	return run, s.repo, nil
}

func (s *BacktestService) finishRun(ctx context.Context, report *BacktestReport, run *backtest.Run, repo ports.ResultRepository) {
	run.Finish(s.now(), report.Evaluated, report.Failed, report.Skipped)
	if repo == nil {
		return
	}
	if err := repo.SaveRows(ctx, run.ID, report.Table.Rows); err != nil {
		s.logger.Warn("[BacktestService] saving rows of run %s failed: %v", run.ID, err)
		return
	}
	if err := repo.FinishRun(ctx, run); err != nil {
		s.logger.Warn("[BacktestService] finishing run %s failed: %v", run.ID, err)
	}
}
