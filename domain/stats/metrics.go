package stats

import (
	"math"

	"happycast/domain/core"

	"gonum.org/v1/gonum/floats"
)

// Scores holds the error metrics of one prediction sequence
type Scores struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// Compute returns mean absolute error and root mean squared error of preds against trues.
// Empty or misaligned input is a caller error.
func Compute(trues, preds []float64) (Scores, error) {
	if len(trues) == 0 || len(preds) == 0 {
		return Scores{}, core.ErrEmptyInput
	}
	if len(trues) != len(preds) {
		return Scores{}, core.NewLengthMismatchError(len(trues), len(preds))
	}

	n := float64(len(trues))
	return Scores{
		MAE:  floats.Distance(trues, preds, 1) / n,
		RMSE: floats.Distance(trues, preds, 2) / math.Sqrt(n),
	}, nil
}

// Exact reports whether both metrics are zero
func (s Scores) Exact() bool {
	return s.MAE == 0 && s.RMSE == 0
}
