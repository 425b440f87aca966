package ui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"happycast/domain/backtest"
	"happycast/domain/core"
	"happycast/domain/dataset"
	"happycast/domain/stats"
	"happycast/internal"
	"happycast/internal/dashboard"
	"happycast/internal/testkit"
	"happycast/ports"
)

// latestOnly is a repository that only answers LatestTable
type latestOnly struct {
	ports.ResultRepository
	tables map[string]*backtest.ResultTable
	err    error
}

func (r *latestOnly) LatestTable(_ context.Context, model string) (*backtest.ResultTable, error) {
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.tables[model]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	return t, nil
}

func fixture() *dataset.Dataset {
	return dataset.New("fixture", []dataset.Record{
		{Country: "United States", Year: 2020, HappinessScore: 6.9, GDPPerCapita: 1.8},
		{Country: "United States", Year: 2021, HappinessScore: 7.0, GDPPerCapita: 1.9},
		{Country: "Chile", Year: 2020, HappinessScore: 6.0, GDPPerCapita: 1.0},
		{Country: "Chile", Year: 2021, HappinessScore: 6.2, GDPPerCapita: 1.1},
		{Country: "Togo", Year: 2021, HappinessScore: 3.5, GDPPerCapita: 0.3},
	}, nil)
}

func summary(model string) *backtest.ResultTable {
	t := backtest.NewModelTable(model)
	t.Append(backtest.NewMetricRow("Chile", model, stats.Scores{MAE: 0.1, RMSE: 0.2}, stats.Scores{MAE: 0.3, RMSE: 0.4}))
	return t
}

func newTestApp(t *testing.T, repo ports.ResultRepository) (*App, *testkit.MemoryTableStore) {
	t.Helper()
	store := testkit.NewMemoryTableStore()
	a := NewApp(Config{OutputDir: "out"}, dashboard.NewViews(fixture()), repo, store, internal.NewNopLogger())
	return a, store
}

func get(t *testing.T, a *App, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestApp_Health(t *testing.T) {
	a, _ := newTestApp(t, nil)
	rec, body := get(t, a, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestApp_Options(t *testing.T) {
	a, _ := newTestApp(t, nil)

	_, body := get(t, a, "/api/years")
	assert.Equal(t, []interface{}{2020.0, 2021.0}, body["years"])
	assert.Equal(t, 2021.0, body["latest"])

	_, body = get(t, a, "/api/countries")
	assert.Equal(t, []interface{}{"Chile", "Togo", "United States"}, body["countries"])
	assert.Equal(t, "United States", body["default"])
}

func TestApp_Rankings(t *testing.T) {
	a, _ := newTestApp(t, nil)

	rec, body := get(t, a, "/api/top?n=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2021.0, body["year"])
	top := body["countries"].([]interface{})
	require.Len(t, top, 2)
	assert.Equal(t, "United States", top[0].(map[string]interface{})["country"])

	_, body = get(t, a, "/api/bottom?year=2020")
	bottom := body["countries"].([]interface{})
	require.Len(t, bottom, 2)
	assert.Equal(t, "Chile", bottom[0].(map[string]interface{})["country"])

	rec, body = get(t, a, "/api/top?n=ten")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestApp_CountryViews(t *testing.T) {
	a, _ := newTestApp(t, nil)

	rec, body := get(t, a, "/api/countries/United%20States/series")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "United States", body["country"])
	assert.Len(t, body["points"], 2)

	rec, body = get(t, a, "/api/countries/Chile/income")
	require.Equal(t, http.StatusOK, rec.Code)
	trend := body["trendline"].(map[string]interface{})
	assert.InDelta(t, 2.0, trend["slope"], 1e-9)

	rec, body = get(t, a, "/api/countries/Atlantis/series")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestApp_Trends(t *testing.T) {
	a, _ := newTestApp(t, nil)

	_, body := get(t, a, "/api/trends?country=Chile&country=Togo&from=2021")
	trends := body["trends"].([]interface{})
	require.Len(t, trends, 2)
	assert.Equal(t, 2021.0, body["from"])
	assert.Equal(t, 2021.0, body["to"])

	_, body = get(t, a, "/api/trends")
	assert.Empty(t, body["trends"])
}

func TestApp_YearMap(t *testing.T) {
	a, _ := newTestApp(t, nil)

	rec, body := get(t, a, "/api/map/2021")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["entries"], 3)
	assert.Equal(t, []interface{}{3.5, 7.0}, body["range"])

	rec, _ = get(t, a, "/api/map/latest")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApp_BacktestFromRepository(t *testing.T) {
	repo := &latestOnly{tables: map[string]*backtest.ResultTable{"gbt": summary("gbt")}}
	a, _ := newTestApp(t, repo)

	rec, body := get(t, a, "/api/backtests/gbt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "database", body["source"])
}

func TestApp_BacktestFallsBackToSummaryFile(t *testing.T) {
	repo := &latestOnly{err: errors.New("connection refused")}
	a, store := newTestApp(t, repo)
	path := filepath.Join("out", "sarimax_backtest_summary.csv")
	require.NoError(t, store.WriteTable(context.Background(), path, summary("sarimax")))

	rec, body := get(t, a, "/api/backtests/sarimax")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, path, body["source"])
	table := body["table"].(map[string]interface{})
	assert.Len(t, table["rows"], 1)

	rec, _ = get(t, a, "/api/backtests/gbt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApp_Comparison(t *testing.T) {
	a, store := newTestApp(t, nil)

	rec, _ := get(t, a, "/api/comparison")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, store.WriteTable(context.Background(), filepath.Join("out", "model_comparison.csv"),
		backtest.Merge(summary("sarimax"), summary("gbt"))))
	rec, body := get(t, a, "/api/comparison")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["columns"], 8)
}
