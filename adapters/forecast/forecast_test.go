package forecast

import (
	"context"
	"errors"
	"testing"

	"happycast/adapters/models/gbt"
	"happycast/adapters/models/sarimax"
	"happycast/domain/series"
	"happycast/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEstimator struct {
	mock.Mock
}

func (m *mockEstimator) Name() string { return "mock" }

func (m *mockEstimator) Fit(ctx context.Context, train series.Window) error {
	return m.Called(ctx, train).Error(0)
}

func (m *mockEstimator) Predict(ctx context.Context, test series.Window) ([]float64, error) {
	args := m.Called(ctx, test)
	preds, _ := args.Get(0).([]float64)
	return preds, args.Error(1)
}

type panickingEstimator struct{}

func (panickingEstimator) Name() string { return "panicky" }
func (panickingEstimator) Fit(context.Context, series.Window) error {
	panic("boom")
}
func (panickingEstimator) Predict(context.Context, series.Window) ([]float64, error) {
	return nil, nil
}

func lagSplit() series.Split {
	s := series.FromValues("Chile", 2010, []float64{4.0, 4.2, 4.4, 4.6, 4.8, 5.0, 5.2, 5.4})
	table := series.BuildLagTable(s, series.DefaultLags)
	return series.Split{Step: 6, Train: table.Window(0, 3), Test: table.Window(3, 4)}
}

func rawSplit() series.Split {
	s := series.FromValues("Chile", 2010, []float64{4.0, 4.2, 4.4, 4.6, 4.8, 5.0, 5.2, 5.4})
	return series.Split{Step: 6, Train: series.RawWindow(s, 0, 6), Test: series.RawWindow(s, 6, 8)}
}

func factoryOf(est ports.Estimator) EstimatorFactory {
	return func() ports.Estimator { return est }
}

func TestTreeForecaster_UsesEstimator(t *testing.T) {
	split := lagSplit()
	est := new(mockEstimator)
	est.On("Fit", mock.Anything, split.Train).Return(nil)
	est.On("Predict", mock.Anything, split.Test).Return([]float64{5.1}, nil)

	f := NewTreeForecaster("gbt", factoryOf(est), nil)
	fc, err := f.Forecast(context.Background(), split)

	require.NoError(t, err)
	assert.Equal(t, []float64{5.1}, fc.Values)
	assert.False(t, fc.Fallback)
	assert.Equal(t, ports.LaggedFeatures, f.Mode())
	est.AssertExpectations(t)
}

func TestTreeForecaster_FallsBackToTrainingMean(t *testing.T) {
	split := lagSplit()
	est := new(mockEstimator)
	est.On("Fit", mock.Anything, mock.Anything).Return(errors.New("singular"))

	fc, err := NewTreeForecaster("gbt", factoryOf(est), nil).Forecast(context.Background(), split)

	require.NoError(t, err)
	assert.True(t, fc.Fallback)
	// training targets are 4.6, 4.8, 5.0
	assert.InDeltaSlice(t, []float64{4.8}, fc.Values, 1e-12)
	assert.Contains(t, fc.Detail, "singular")
	est.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestTreeForecaster_FallsBackOnShortPrediction(t *testing.T) {
	split := lagSplit()
	est := new(mockEstimator)
	est.On("Fit", mock.Anything, mock.Anything).Return(nil)
	est.On("Predict", mock.Anything, mock.Anything).Return([]float64{}, nil)

	fc, err := NewTreeForecaster("gbt", factoryOf(est), nil).Forecast(context.Background(), split)
	require.NoError(t, err)
	assert.True(t, fc.Fallback)
	assert.Len(t, fc.Values, 1)
}

func TestTreeForecaster_DisabledEngine(t *testing.T) {
	f := NewTreeForecaster("gbt", nil, nil)
	assert.False(t, f.Enabled())

	fc, err := f.Forecast(context.Background(), lagSplit())
	require.NoError(t, err)
	assert.True(t, fc.Fallback)
	assert.InDeltaSlice(t, []float64{4.8}, fc.Values, 1e-12)
}

func TestTreeForecaster_RecoversPanics(t *testing.T) {
	fc, err := NewTreeForecaster("gbt", factoryOf(panickingEstimator{}), nil).Forecast(context.Background(), lagSplit())
	require.NoError(t, err)
	assert.True(t, fc.Fallback)
	assert.Contains(t, fc.Detail, "boom")
}

func TestTreeForecaster_WithBoostedTrees(t *testing.T) {
	factory := func() ports.Estimator { return gbt.New(gbt.DefaultConfig()) }
	fc, err := NewTreeForecaster("gbt", factory, nil).Forecast(context.Background(), lagSplit())
	require.NoError(t, err)
	assert.False(t, fc.Fallback)
	require.Len(t, fc.Values, 1)
}

func TestSeasonalForecaster_FallsBackToLastValue(t *testing.T) {
	split := rawSplit()
	est := new(mockEstimator)
	est.On("Fit", mock.Anything, mock.Anything).Return(nil)
	est.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.New("diverged"))

	f := NewSeasonalForecaster("sarimax", factoryOf(est), nil)
	fc, err := f.Forecast(context.Background(), split)

	require.NoError(t, err)
	assert.True(t, fc.Fallback)
	assert.Equal(t, []float64{5.0, 5.0}, fc.Values)
	assert.Equal(t, ports.RawSeries, f.Mode())
}

func TestSeasonalForecaster_WithSarimax(t *testing.T) {
	factory := func() ports.Estimator { return sarimax.NewEstimator(sarimax.DefaultSearchConfig(), nil) }
	fc, err := NewSeasonalForecaster("sarimax", factory, nil).Forecast(context.Background(), rawSplit())
	require.NoError(t, err)
	assert.Len(t, fc.Values, 2)
}

func TestForecasters_RejectEmptyWindows(t *testing.T) {
	ctx := context.Background()
	split := rawSplit()
	split.Test = series.Window{}

	_, err := NewSeasonalForecaster("sarimax", nil, nil).Forecast(ctx, split)
	assert.Error(t, err)

	split = lagSplit()
	split.Train = series.Window{}
	_, err = NewTreeForecaster("gbt", nil, nil).Forecast(ctx, split)
	assert.Error(t, err)
}

func TestForecasters_ReturnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTreeForecaster("gbt", nil, nil).Forecast(ctx, lagSplit())
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewSeasonalForecaster("sarimax", nil, nil).Forecast(ctx, rawSplit())
	assert.ErrorIs(t, err, context.Canceled)
}
