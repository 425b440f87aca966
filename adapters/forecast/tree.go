package forecast

import (
	"context"

	"happycast/domain/series"
	"happycast/internal"
	"happycast/ports"

	"github.com/montanaflynn/stats"
)

// TreeForecaster forecasts from lag features with a boosted-tree estimator.
// A nil factory disables the engine and every step uses the training mean.
type TreeForecaster struct {
	name    string
	factory EstimatorFactory
	logger  *internal.Logger
}

// NewTreeForecaster creates a lag-feature forecaster reporting under name
func NewTreeForecaster(name string, factory EstimatorFactory, logger *internal.Logger) *TreeForecaster {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &TreeForecaster{name: name, factory: factory, logger: logger}
}

func (f *TreeForecaster) Name() string { return f.name }

func (f *TreeForecaster) Mode() ports.FeatureMode { return ports.LaggedFeatures }

// Enabled reports whether a tree engine is configured
func (f *TreeForecaster) Enabled() bool { return f.factory != nil }

// Forecast fits on the training rows and predicts the test rows. On failure
// the training-target mean is repeated across the horizon.
func (f *TreeForecaster) Forecast(ctx context.Context, split series.Split) (ports.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return ports.Forecast{}, err
	}
	if err := checkSplit(split); err != nil {
		return ports.Forecast{}, err
	}

	mean, err := stats.Mean(split.Train.Target)
	if err != nil {
		return ports.Forecast{}, err
	}

	if f.factory == nil {
		return ports.Forecast{
			Values:   constant(mean, split.Test.Len()),
			Fallback: true,
			Detail:   "tree engine disabled",
		}, nil
	}

	preds, err := fitPredict(ctx, f.factory(), split)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ports.Forecast{}, ctxErr
		}
		f.logger.Debug("[TreeForecaster] step %d: %v, using training mean %.4f", split.Step, err, mean)
		return ports.Forecast{
			Values:   constant(mean, split.Test.Len()),
			Fallback: true,
			Detail:   err.Error(),
		}, nil
	}
	return ports.Forecast{Values: preds}, nil
}
