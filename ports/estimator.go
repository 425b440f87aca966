package ports

import (
	"context"

	"happycast/domain/series"
)

// Estimator is a forecasting model treated as a black box: fit on a training
// window, then predict one value per test row. Implementations may fail on
// either call; adapters decide how to recover.
type Estimator interface {
	Name() string
	Fit(ctx context.Context, train series.Window) error
	Predict(ctx context.Context, test series.Window) ([]float64, error)
}

// FeatureMode tells the walk-forward loop which windows a forecaster consumes
type FeatureMode int

const (
	// RawSeries windows hold the plain training prefix
	RawSeries FeatureMode = iota
	// LaggedFeatures windows hold lag-table rows
	LaggedFeatures
)

// Forecast is the outcome of one walk-forward step
type Forecast struct {
	Values   []float64
	Fallback bool
	Detail   string
}

// Forecaster wraps an estimator behind a uniform fit-then-predict contract
// with a constant fallback. It returns one value per test row; an error means
// the step could not be forecast at all (cancellation, malformed split).
type Forecaster interface {
	Name() string
	Mode() FeatureMode
	Forecast(ctx context.Context, split series.Split) (Forecast, error)
}
