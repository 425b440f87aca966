package backtest

import "happycast/domain/series"

// Naive returns the persistence baseline over the same origins as the loop:
// for each t the value at t-1, repeated across the horizon. It always uses the
// untrimmed series.
func Naive(ts series.TimeSeries, cfg Config) []float64 {
	var out []float64
	for _, t := range Steps(ts.Len(), cfg) {
		if t < 1 {
			continue
		}
		prev := ts.Value(t - 1)
		for h := 0; h < cfg.Horizon; h++ {
			out = append(out, prev)
		}
	}
	return out
}
