package sarimax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"happycast/domain/core"
	"happycast/domain/series"
	"happycast/internal"
)

// Estimator re-runs the order search on every Fit and forecasts with the
// chosen model. It satisfies ports.Estimator.
type Estimator struct {
	cfg    SearchConfig
	logger *internal.Logger

	model    *Model
	selected Spec
	origin   time.Time
}

// NewEstimator creates an estimator with the given search configuration
func NewEstimator(cfg SearchConfig, logger *internal.Logger) *Estimator {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Estimator{cfg: cfg, logger: logger}
}

// Name identifies the estimator in logs
func (e *Estimator) Name() string {
	return "sarimax"
}

// Selected returns the spec chosen by the last Fit
func (e *Estimator) Selected() Spec {
	return e.selected
}

// Fit searches the grid on the training target. When no candidate fits it
// falls back to FallbackSpec; an error means even that failed.
func (e *Estimator) Fit(ctx context.Context, train series.Window) error {
	e.model = nil
	if train.IsEmpty() {
		return core.ErrEmptyInput
	}
	index, err := yearIndex(train.Periods)
	if err != nil {
		return err
	}

	sel, err := SelectOrder(ctx, train.Target, e.cfg)
	switch {
	case err == nil:
		e.model, e.selected = sel.Model, sel.Spec
		e.logger.Trace("[SARIMAX] selected %s aic=%.4f (%d/%d candidates fitted)", sel.Spec, sel.AIC, sel.Fitted, sel.Candidates)
	case errors.Is(err, core.ErrNoCandidate):
		m, ferr := Fit(ctx, train.Target, FallbackSpec, e.cfg.Fit)
		if ferr != nil {
			return ferr
		}
		e.model, e.selected = m, FallbackSpec
		e.logger.Trace("[SARIMAX] no candidate fitted, using %s", FallbackSpec)
	default:
		return err
	}
	e.origin = index[len(index)-1]
	return nil
}

// Predict forecasts one value per test row
func (e *Estimator) Predict(ctx context.Context, test series.Window) ([]float64, error) {
	if e.model == nil {
		return nil, core.ErrNotFitted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(test.Periods) > 0 {
		next := e.origin.AddDate(1, 0, 0)
		first := series.YearStart(test.Periods[0])
		if first.Before(next) {
			return nil, fmt.Errorf("test window starts at %s, before forecast origin %s", first.Format("2006-01-02"), next.Format("2006-01-02"))
		}
	}
	return e.model.Forecast(test.Len()), nil
}

// yearIndex coerces yearly periods to January 1st dates and checks they increase
func yearIndex(periods []int) ([]time.Time, error) {
	index := make([]time.Time, len(periods))
	for i, p := range periods {
		index[i] = series.YearStart(p)
		if i > 0 && !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("periods must be strictly increasing at position %d", i)
		}
	}
	if len(index) == 0 {
		return nil, core.ErrEmptyInput
	}
	return index, nil
}
