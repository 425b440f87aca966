// Package backtest runs rolling-origin evaluations of a forecaster over one
// series and scores them against a naive persistence baseline.
package backtest

import (
	"context"
	"fmt"
	"math"

	"happycast/domain/core"
	"happycast/domain/series"
	"happycast/domain/stats"
	"happycast/internal"
	"happycast/internal/errors"
	"happycast/ports"
)

// Config controls the walk-forward loop
type Config struct {
	InitialFrac float64       `json:"initial_frac" yaml:"initial_frac"`
	Horizon     int           `json:"horizon" yaml:"horizon"`
	Lags        series.LagSet `json:"lags" yaml:"lags"`
}

// DefaultConfig trains on the first 60% and forecasts one period ahead
func DefaultConfig() Config {
	return Config{InitialFrac: 0.6, Horizon: 1, Lags: series.DefaultLags}
}

// Validate rejects fractions outside (0, 1), non-positive horizons and bad lags
func (c Config) Validate() error {
	if math.IsNaN(c.InitialFrac) || c.InitialFrac <= 0 || c.InitialFrac >= 1 {
		return errors.ConfigInvalid(fmt.Sprintf("initial_frac must be in (0, 1), got %g", c.InitialFrac))
	}
	if c.Horizon < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("horizon must be at least 1, got %d", c.Horizon))
	}
	if _, err := series.NewLagSet(c.Lags...); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Initial returns floor(n * InitialFrac), the first forecast origin
func (c Config) Initial(n int) int {
	return int(math.Floor(float64(n) * c.InitialFrac))
}

// StepCount returns max(0, n - horizon - floor(n*frac) + 1)
func StepCount(n int, cfg Config) int {
	steps := n - cfg.Horizon - cfg.Initial(n) + 1
	if steps < 0 {
		return 0
	}
	return steps
}

// Steps lists the forecast origins t in [initial, n - horizon]
func Steps(n int, cfg Config) []int {
	count := StepCount(n, cfg)
	origins := make([]int, count)
	initial := cfg.Initial(n)
	for i := range origins {
		origins[i] = initial + i
	}
	return origins
}

// Result holds the accumulated forecasts of one series
type Result struct {
	Country   core.Country
	Trues     []float64
	Preds     []float64
	Naive     []float64
	Steps     int
	Skipped   int
	Fallbacks int
}

// Evaluated reports whether any step produced forecasts
func (r Result) Evaluated() bool {
	return len(r.Trues) > 0
}

// Score computes MAE/RMSE of the model and of the naive baseline. The naive
// list is truncated to the model's evaluation length and scored against the
// model's trues.
func (r Result) Score() (model, naive stats.Scores, err error) {
	model, err = stats.Compute(r.Trues, r.Preds)
	if err != nil {
		return stats.Scores{}, stats.Scores{}, fmt.Errorf("model scores: %w", err)
	}
	n := len(r.Trues)
	if len(r.Naive) < n {
		n = len(r.Naive)
	}
	naive, err = stats.Compute(r.Trues[:n], r.Naive[:n])
	if err != nil {
		return stats.Scores{}, stats.Scores{}, fmt.Errorf("naive scores: %w", err)
	}
	return model, naive, nil
}

// Runner executes the walk-forward loop
type Runner struct {
	cfg    Config
	logger *internal.Logger
}

// NewRunner creates a runner; cfg must already be validated
func NewRunner(cfg Config, logger *internal.Logger) *Runner {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Config returns the loop configuration
func (r *Runner) Config() Config {
	return r.cfg
}

// Run walks the series forward one origin at a time. Steps whose training
// window is empty or whose test window is short are skipped. Forecaster
// fallbacks still count as evaluated steps.
func (r *Runner) Run(ctx context.Context, ts series.TimeSeries, f ports.Forecaster) (Result, error) {
	res := Result{Country: ts.Key, Naive: Naive(ts, r.cfg)}
	fh := r.cfg.Horizon

	var table series.LagTable
	offset := 0
	if f.Mode() == ports.LaggedFeatures {
		table = series.BuildLagTable(ts, r.cfg.Lags)
		offset = r.cfg.Lags.Max()
	}

	for _, t := range Steps(ts.Len(), r.cfg) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		split, ok := r.split(ts, table, f.Mode(), t, offset)
		if !ok {
			res.Skipped++
			r.logger.Trace("[Backtest] %s step %d skipped", ts.Key, t)
			continue
		}

		fc, err := f.Forecast(ctx, split)
		if err != nil {
			return res, fmt.Errorf("%s step %d: %w", f.Name(), t, err)
		}
		if len(fc.Values) != fh {
			return res, fmt.Errorf("%s step %d: %w", f.Name(), t, core.NewLengthMismatchError(len(fc.Values), fh))
		}
		if fc.Fallback {
			res.Fallbacks++
		}

		res.Trues = append(res.Trues, split.Test.Target...)
		res.Preds = append(res.Preds, fc.Values...)
		res.Steps++
	}

	r.logger.Trace("[Backtest] %s: %d steps, %d skipped, %d fallbacks", ts.Key, res.Steps, res.Skipped, res.Fallbacks)
	return res, nil
}

func (r *Runner) split(ts series.TimeSeries, table series.LagTable, mode ports.FeatureMode, t, offset int) (series.Split, bool) {
	fh := r.cfg.Horizon
	if mode == ports.RawSeries {
		if t <= 0 || t+fh > ts.Len() {
			return series.Split{}, false
		}
		return series.Split{
			Step:  t,
			Train: series.RawWindow(ts, 0, t),
			Test:  series.RawWindow(ts, t, t+fh),
		}, true
	}

	cut := t - offset
	if cut <= 0 || cut+fh > table.Len() {
		return series.Split{}, false
	}
	return series.Split{
		Step:  t,
		Train: table.Window(0, cut),
		Test:  table.Window(cut, cut+fh),
	}, true
}
