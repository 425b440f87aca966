package config

import (
	"os"
	"path/filepath"
	"testing"

	"happycast/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HAPPYCAST_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Backtest.InitialFrac)
	assert.Equal(t, 1, cfg.Backtest.Horizon)
	assert.Equal(t, []int{1, 2, 3}, cfg.Backtest.Lags)
	assert.Equal(t, 8, cfg.Backtest.MinPeriods)
	assert.Equal(t, 30, cfg.Backtest.MaxCountries)
	assert.Equal(t, 10, cfg.Backtest.CheckpointEvery)
	assert.Equal(t, 200, cfg.Backtest.Tree.NumTrees)
	assert.Equal(t, int64(7), cfg.Backtest.Tree.Seed)
	assert.True(t, cfg.Backtest.TreeEngineEnabled())
	assert.Equal(t, "7124", cfg.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HAPPYCAST_CONFIG", "")
	t.Setenv("HAPPYCAST_HORIZON", "2")
	t.Setenv("HAPPYCAST_LAGS", "1, 4")
	t.Setenv("HAPPYCAST_TREE_ENGINE", "OFF")
	t.Setenv("DATABASE_URL", "file:results.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Backtest.Horizon)
	assert.Equal(t, []int{1, 4}, cfg.Backtest.Lags)
	assert.False(t, cfg.Backtest.TreeEngineEnabled())
	assert.Equal(t, "file:results.db", cfg.Database.URL)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	t.Setenv("HAPPYCAST_CONFIG", "")
	t.Setenv("HAPPYCAST_MAX_COUNTRIES", "12")

	path := filepath.Join(t.TempDir(), "happycast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backtest:
  initial_frac: 0.5
  seasonal_period: 4
  tree:
    num_trees: 50
server:
  port: "9000"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Backtest.InitialFrac)
	assert.Equal(t, 4, cfg.Backtest.SeasonalPeriod)
	assert.Equal(t, 50, cfg.Backtest.Tree.NumTrees)
	assert.Equal(t, 0.1, cfg.Backtest.Tree.LearningRate, "keys absent from the file keep their value")
	assert.Equal(t, 12, cfg.Backtest.MaxCountries)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("HAPPYCAST_CONFIG", "")

	t.Setenv("HAPPYCAST_INITIAL_FRAC", "1.5")
	_, err := Load("")
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	t.Setenv("HAPPYCAST_INITIAL_FRAC", "0.6")
	t.Setenv("HAPPYCAST_HORIZON", "0")
	_, err = Load("")
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backtest: [1, 2"), 0o644))
	t.Setenv("HAPPYCAST_HORIZON", "1")
	_, err = Load(path)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, errors.CodeStorageError, errors.GetCode(err))
}
