package sarimax

import (
	"context"
	"math/rand"
	"testing"

	"happycast/domain/core"
	"happycast/domain/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func arSeries(n int, phi float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	y := make([]float64, n)
	for t := 1; t < n; t++ {
		y[t] = phi*y[t-1] + rng.NormFloat64()
	}
	return y
}

func TestGrid_Size(t *testing.T) {
	assert.Len(t, Grid(DefaultGridBounds(), 1), 18)
	assert.Len(t, Grid(DefaultGridBounds(), 0), 18)
	assert.Len(t, Grid(DefaultGridBounds(), 4), 144)

	for _, spec := range Grid(DefaultGridBounds(), 1) {
		assert.Equal(t, SeasonalOrder{}, spec.Seasonal)
		assert.NoError(t, spec.Validate())
	}
	first := Grid(DefaultGridBounds(), 4)[1]
	assert.Equal(t, "(0,0,0)(0,0,1,4)", first.String())
}

func TestSpec_NumParamsAndValidate(t *testing.T) {
	assert.Equal(t, 3, FallbackSpec.NumParams())
	assert.Equal(t, "(1,1,1)(0,0,0,0)", FallbackSpec.String())

	s := Spec{Order: Order{P: 2, Q: 1}, Seasonal: SeasonalOrder{P: 1, Q: 1, S: 4}}
	assert.Equal(t, 6, s.NumParams())

	bad := Spec{Seasonal: SeasonalOrder{P: 1}}
	assert.Error(t, bad.Validate())
	assert.Error(t, Spec{Order: Order{P: -1}}.Validate())
}

func TestDiffPoly(t *testing.T) {
	assert.Equal(t, []float64{1}, diffPoly(0, 0, 1))
	assert.Equal(t, []float64{1, -2, 1}, diffPoly(2, 0, 1))
	assert.Equal(t, []float64{1, -1, 0, 0, -1, 1}, diffPoly(1, 1, 4))
}

func TestConstrain_Stationary(t *testing.T) {
	assert.Nil(t, constrain(nil))
	assert.Equal(t, []float64{0, 0}, constrain([]float64{0, 0}))

	phi := constrain([]float64{25, 25})
	// AR(2) stationarity triangle
	assert.Less(t, phi[1]+phi[0], 1.0)
	assert.Less(t, phi[1]-phi[0], 1.0)
	assert.Less(t, phi[1], 1.0)
	assert.Greater(t, phi[1], -1.0)
}

func TestFit_RecoversAR1(t *testing.T) {
	y := arSeries(400, 0.6, 11)

	m, err := Fit(context.Background(), y, Spec{Order: Order{P: 1}}, DefaultFitOptions())
	require.NoError(t, err)

	require.Len(t, m.AR(), 1)
	assert.InDelta(t, 0.6, m.AR()[0], 0.1)
	assert.InDelta(t, 1.0, m.Sigma2(), 0.2)
	assert.InDelta(t, 2*2-2*m.LogLikelihood(), m.AIC(), 1e-9)

	fc := m.Forecast(2)
	require.Len(t, fc, 2)
	assert.InDelta(t, m.AR()[0]*y[len(y)-1], fc[0], 1e-9)
	assert.InDelta(t, m.AR()[0]*fc[0], fc[1], 1e-9)
}

func TestFit_RandomWalkForecastsLastValue(t *testing.T) {
	y := []float64{5.0, 5.3, 5.1, 5.6, 5.4, 5.8, 5.7, 6.0}

	m, err := Fit(context.Background(), y, Spec{Order: Order{D: 1}}, DefaultFitOptions())
	require.NoError(t, err)
	assert.Equal(t, []float64{6.0, 6.0, 6.0}, m.Forecast(3))
	assert.Empty(t, m.Forecast(0))
}

func TestFit_SeasonalDifferencing(t *testing.T) {
	// period-2 pattern: seasonal random walk repeats the last season
	y := []float64{1, 3, 1, 3, 1, 3, 1, 3, 1, 3}
	spec := Spec{Seasonal: SeasonalOrder{D: 1, S: 2}}

	m, err := Fit(context.Background(), y, spec, DefaultFitOptions())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 3, 1}, m.Forecast(3), 1e-12)
}

func TestFit_InsufficientData(t *testing.T) {
	_, err := Fit(context.Background(), []float64{1, 2, 3, 4, 5}, Spec{Order: Order{P: 2, D: 1, Q: 2}}, DefaultFitOptions())
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = Fit(context.Background(), []float64{1}, Spec{Order: Order{D: 1}}, DefaultFitOptions())
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestSelectOrder_DeterministicAcrossWorkerCounts(t *testing.T) {
	defer goleak.VerifyNone(t)

	y := arSeries(60, 0.7, 3)
	cfg := DefaultSearchConfig()

	cfg.Workers = 1
	serial, err := SelectOrder(context.Background(), y, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := SelectOrder(context.Background(), y, cfg)
	require.NoError(t, err)

	assert.Equal(t, serial.Spec, parallel.Spec)
	assert.Equal(t, serial.AIC, parallel.AIC)
	assert.Equal(t, 18, serial.Candidates)
	assert.Equal(t, 18, serial.Fitted)
}

func TestSelectOrder_NoCandidate(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, err := SelectOrder(context.Background(), []float64{4.2}, DefaultSearchConfig())
	assert.ErrorIs(t, err, core.ErrNoCandidate)
}

func TestSelectOrder_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SelectOrder(ctx, arSeries(30, 0.5, 1), DefaultSearchConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimator_FitPredict(t *testing.T) {
	ctx := context.Background()
	s := series.FromValues("Chile", 2000, arSeries(30, 0.5, 5))
	e := NewEstimator(DefaultSearchConfig(), nil)

	_, err := e.Predict(ctx, series.RawWindow(s, 25, 27))
	assert.ErrorIs(t, err, core.ErrNotFitted)

	require.NoError(t, e.Fit(ctx, series.RawWindow(s, 0, 25)))
	assert.NoError(t, e.Selected().Validate())

	preds, err := e.Predict(ctx, series.RawWindow(s, 25, 27))
	require.NoError(t, err)
	assert.Len(t, preds, 2)

	_, err = e.Predict(ctx, series.RawWindow(s, 10, 12))
	assert.Error(t, err, "test window before the forecast origin")
}

func TestEstimator_FailsWhenFallbackCannotFit(t *testing.T) {
	e := NewEstimator(DefaultSearchConfig(), nil)
	s := series.FromValues("Peru", 2000, []float64{4.2})

	err := e.Fit(context.Background(), series.RawWindow(s, 0, 1))
	assert.ErrorIs(t, err, core.ErrInsufficientData)
	assert.ErrorIs(t, e.Fit(context.Background(), series.Window{}), core.ErrEmptyInput)
}
