package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"happycast/domain/series"
	"happycast/internal/backtest"
	"happycast/internal/errors"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Backtest BacktestConfig `yaml:"backtest"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DataConfig holds input and output locations
type DataConfig struct {
	DatasetPath string `yaml:"dataset_path"`
	OutputDir   string `yaml:"output_dir"`
	Column      string `yaml:"column"`
}

// BacktestConfig holds walk-forward and model settings
type BacktestConfig struct {
	InitialFrac     float64    `yaml:"initial_frac"`
	Horizon         int        `yaml:"horizon"`
	Lags            []int      `yaml:"lags"`
	MinPeriods      int        `yaml:"min_periods"`
	MaxCountries    int        `yaml:"max_countries"`
	CheckpointEvery int        `yaml:"checkpoint_every"`
	SeasonalPeriod  int        `yaml:"seasonal_period"`
	GridWorkers     int        `yaml:"grid_workers"`
	TreeEngine      string     `yaml:"tree_engine"`
	TreeModelName   string     `yaml:"tree_model_name"`
	Tree            TreeConfig `yaml:"tree"`
}

// TreeConfig holds the boosted-tree hyperparameters
type TreeConfig struct {
	NumTrees       int     `yaml:"num_trees"`
	LearningRate   float64 `yaml:"learning_rate"`
	MaxDepth       int     `yaml:"max_depth"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf"`
	Subsample      float64 `yaml:"subsample"`
	Seed           int64   `yaml:"seed"`
}

// DatabaseConfig holds the optional result store connection
type DatabaseConfig struct {
	URL    string `yaml:"url"`
	Driver string `yaml:"driver"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TreeEngineOff disables the boosted-tree estimator
const TreeEngineOff = "off"

// Load reads configuration from environment variables, overlays the YAML file
// at path (or HAPPYCAST_CONFIG when path is empty) and validates the result
func Load(path string) (*Config, error) {
	config := &Config{
		Data:     loadDataConfig(),
		Backtest: loadBacktestConfig(),
		Database: loadDatabaseConfig(),
		Server:   loadServerConfig(),
		Logging:  loadLoggingConfig(),
	}

	if path == "" {
		path = os.Getenv("HAPPYCAST_CONFIG")
	}
	if path != "" {
		if err := config.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.StorageError(path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to parse %s: %w", path, err))
	}
	return nil
}

func loadDataConfig() DataConfig {
	return DataConfig{
		DatasetPath: getEnvOrDefault("HAPPYCAST_DATASET", "dataset/dataset.csv"),
		OutputDir:   getEnvOrDefault("HAPPYCAST_OUTPUT_DIR", "."),
		Column:      getEnvOrDefault("HAPPYCAST_COLUMN", "happiness_score"),
	}
}

func loadBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialFrac:     getEnvFloatOrDefault("HAPPYCAST_INITIAL_FRAC", 0.6),
		Horizon:         getEnvIntOrDefault("HAPPYCAST_HORIZON", 1),
		Lags:            getEnvIntsOrDefault("HAPPYCAST_LAGS", []int{1, 2, 3}),
		MinPeriods:      getEnvIntOrDefault("HAPPYCAST_MIN_PERIODS", series.MinPeriods),
		MaxCountries:    getEnvIntOrDefault("HAPPYCAST_MAX_COUNTRIES", 30),
		CheckpointEvery: getEnvIntOrDefault("HAPPYCAST_CHECKPOINT_EVERY", 10),
		SeasonalPeriod:  getEnvIntOrDefault("HAPPYCAST_SEASONAL_PERIOD", 1),
		GridWorkers:     getEnvIntOrDefault("HAPPYCAST_GRID_WORKERS", 0),
		TreeEngine:      strings.ToLower(getEnvOrDefault("HAPPYCAST_TREE_ENGINE", "gbt")),
		TreeModelName:   getEnvOrDefault("HAPPYCAST_TREE_MODEL", "gbt"),
		Tree: TreeConfig{
			NumTrees:       getEnvIntOrDefault("HAPPYCAST_TREE_COUNT", 200),
			LearningRate:   getEnvFloatOrDefault("HAPPYCAST_TREE_LEARNING_RATE", 0.1),
			MaxDepth:       getEnvIntOrDefault("HAPPYCAST_TREE_MAX_DEPTH", 3),
			MinSamplesLeaf: getEnvIntOrDefault("HAPPYCAST_TREE_MIN_LEAF", 2),
			Subsample:      getEnvFloatOrDefault("HAPPYCAST_TREE_SUBSAMPLE", 0.8),
			Seed:           int64(getEnvIntOrDefault("HAPPYCAST_TREE_SEED", 7)),
		},
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:    getEnvOrDefault("DATABASE_URL", ""),
		Driver: getEnvOrDefault("DATABASE_DRIVER", ""),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "7124"),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}
}

// Validate checks ranges the backtest cannot run with
func (c *Config) Validate() error {
	if err := c.Backtest.Loop().Validate(); err != nil {
		return err
	}
	b := c.Backtest
	switch {
	case b.MinPeriods < 1:
		return errors.ConfigInvalid(fmt.Sprintf("min_periods must be positive, got %d", b.MinPeriods))
	case b.MaxCountries < 1:
		return errors.ConfigInvalid(fmt.Sprintf("max_countries must be positive, got %d", b.MaxCountries))
	case b.CheckpointEvery < 0:
		return errors.ConfigInvalid(fmt.Sprintf("checkpoint_every cannot be negative, got %d", b.CheckpointEvery))
	case b.SeasonalPeriod < 0:
		return errors.ConfigInvalid(fmt.Sprintf("seasonal_period cannot be negative, got %d", b.SeasonalPeriod))
	case b.GridWorkers < 0:
		return errors.ConfigInvalid(fmt.Sprintf("grid_workers cannot be negative, got %d", b.GridWorkers))
	case b.TreeModelName == "":
		return errors.ConfigInvalid("tree_model_name is required")
	}
	if c.Data.Column == "" {
		return errors.ConfigInvalid("data column is required")
	}
	if c.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	return nil
}

// Loop returns the walk-forward loop settings
func (b BacktestConfig) Loop() backtest.Config {
	return backtest.Config{
		InitialFrac: b.InitialFrac,
		Horizon:     b.Horizon,
		Lags:        series.LagSet(b.Lags),
	}
}

// TreeEngineEnabled reports whether the boosted-tree estimator should run
func (b BacktestConfig) TreeEngineEnabled() bool {
	return b.TreeEngine != TreeEngineOff && b.TreeEngine != "false" && b.TreeEngine != "0"
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvIntsOrDefault parses a comma-separated list; any malformed entry yields the default
func getEnvIntsOrDefault(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
