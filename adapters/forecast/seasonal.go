package forecast

import (
	"context"

	"happycast/domain/series"
	"happycast/internal"
	"happycast/ports"
)

// SeasonalForecaster forecasts the raw series with a statistical estimator
// that searches its own order at every step
type SeasonalForecaster struct {
	name    string
	factory EstimatorFactory
	logger  *internal.Logger
}

// NewSeasonalForecaster creates a raw-series forecaster reporting under name
func NewSeasonalForecaster(name string, factory EstimatorFactory, logger *internal.Logger) *SeasonalForecaster {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &SeasonalForecaster{name: name, factory: factory, logger: logger}
}

func (f *SeasonalForecaster) Name() string { return f.name }

func (f *SeasonalForecaster) Mode() ports.FeatureMode { return ports.RawSeries }

// Forecast fits on the training prefix and forecasts len(test) steps. On
// failure the last training value is repeated across the horizon.
func (f *SeasonalForecaster) Forecast(ctx context.Context, split series.Split) (ports.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return ports.Forecast{}, err
	}
	if err := checkSplit(split); err != nil {
		return ports.Forecast{}, err
	}

	last := split.Train.Last()
	if f.factory == nil {
		return ports.Forecast{
			Values:   constant(last, split.Test.Len()),
			Fallback: true,
			Detail:   "no estimator configured",
		}, nil
	}

	preds, err := fitPredict(ctx, f.factory(), split)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ports.Forecast{}, ctxErr
		}
		f.logger.Debug("[SeasonalForecaster] step %d: %v, repeating last value %.4f", split.Step, err, last)
		return ports.Forecast{
			Values:   constant(last, split.Test.Len()),
			Fallback: true,
			Detail:   err.Error(),
		}, nil
	}
	return ports.Forecast{Values: preds}, nil
}
