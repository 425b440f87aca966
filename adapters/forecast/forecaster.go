// Package forecast adapts estimators to the walk-forward loop. Each adapter
// fits on the training window, predicts the test window and substitutes a
// constant forecast when the estimator fails.
package forecast

import (
	"context"
	"fmt"

	"happycast/domain/core"
	"happycast/domain/series"
	"happycast/ports"
)

// EstimatorFactory creates a fresh estimator for each step
type EstimatorFactory func() ports.Estimator

// fitPredict runs one fit/predict cycle, converting panics into errors
func fitPredict(ctx context.Context, est ports.Estimator, split series.Split) (preds []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewEstimatorError(est.Name(), fmt.Errorf("panic: %v", r))
		}
	}()

	if err := est.Fit(ctx, split.Train); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	preds, err = est.Predict(ctx, split.Test)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(preds) != split.Test.Len() {
		return nil, fmt.Errorf("predict: %w", core.NewLengthMismatchError(len(preds), split.Test.Len()))
	}
	return preds, nil
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func checkSplit(split series.Split) error {
	if split.Train.IsEmpty() {
		return fmt.Errorf("step %d: %w: empty training window", split.Step, core.ErrEmptyInput)
	}
	if split.Test.IsEmpty() {
		return fmt.Errorf("step %d: %w: empty test window", split.Step, core.ErrEmptyInput)
	}
	return nil
}
