package testkit

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"happycast/domain/backtest"
	"happycast/domain/core"
	"happycast/domain/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHappinessGenerator_Shape(t *testing.T) {
	cfg := DefaultHappinessConfig()
	ds := NewHappinessGenerator(cfg).Dataset()

	countries := ds.Countries()
	require.Len(t, countries, cfg.Countries)

	short := 0
	for _, c := range countries {
		s, err := ds.Series(c, "happiness_score")
		require.NoError(t, err)
		if !s.Qualifies(series.MinPeriods) {
			short++
			assert.Equal(t, cfg.ShortYears, s.Len())
		}
		for _, v := range s.Values() {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 10.0)
		}
	}
	assert.Equal(t, cfg.ShortCountries, short)
}

func TestHappinessGenerator_Deterministic(t *testing.T) {
	a := NewHappinessGenerator(DefaultHappinessConfig()).Records()
	b := NewHappinessGenerator(DefaultHappinessConfig()).Records()
	assert.Equal(t, a, b)

	cfg := DefaultHappinessConfig()
	cfg.Seed = 7
	c := NewHappinessGenerator(cfg).Records()
	assert.NotEqual(t, a, c)
}

func TestHappinessGenerator_WriteCSV(t *testing.T) {
	cfg := DefaultHappinessConfig()
	cfg.Countries, cfg.ShortCountries, cfg.Years = 2, 0, 3

	var buf bytes.Buffer
	require.NoError(t, NewHappinessGenerator(cfg).WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "country,year,happiness_score,gdp_per_capita", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Afghanistan,2005,"))
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, core.Country("Afghanistan"), CountryName(0))
	assert.Equal(t, core.Country("Country 101"), CountryName(100))
}

func TestMemoryTableStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTableStore()

	_, err := store.ReadTable(ctx, "x.csv")
	assert.True(t, core.IsNotFoundError(err))

	table := backtest.NewModelTable("gbt")
	require.NoError(t, store.WriteTable(ctx, "x.csv", table))
	table.Append(backtest.MetricRow{Country: "Chile", Values: map[string]float64{"gbt_MAE": 1}})

	got, err := store.ReadTable(ctx, "x.csv")
	require.NoError(t, err)
	assert.Zero(t, got.Len(), "stored tables are copies")
	assert.Equal(t, 1, store.Writes("x.csv"))
}
