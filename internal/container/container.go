package container

import (
	"context"
	"fmt"
	"path/filepath"

	"happycast/adapters/db"
	"happycast/adapters/excel"
	"happycast/adapters/forecast"
	"happycast/adapters/models/gbt"
	"happycast/adapters/models/sarimax"
	"happycast/app"
	"happycast/domain/dataset"
	"happycast/internal"
	loop "happycast/internal/backtest"
	"happycast/internal/config"
	"happycast/internal/errors"
	"happycast/internal/migration"
	"happycast/ports"

	"github.com/jmoiron/sqlx"
)

// SeasonalModel is the result column prefix of the statistical forecaster
const SeasonalModel = "sarimax"

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Storage
	Tables     *excel.TableStore
	ResultRepo ports.ResultRepository

	// Services
	Runner      *loop.Runner
	Backtests   *app.BacktestService
	Comparisons *app.ComparisonService

	treeConfig gbt.Config
}

// New creates a container without a database; call InitWithDatabase to enable
// run persistence
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	treeConfig := gbt.Config{
		NumTrees:       cfg.Backtest.Tree.NumTrees,
		LearningRate:   cfg.Backtest.Tree.LearningRate,
		MaxDepth:       cfg.Backtest.Tree.MaxDepth,
		MinSamplesLeaf: cfg.Backtest.Tree.MinSamplesLeaf,
		Subsample:      cfg.Backtest.Tree.Subsample,
		Seed:           cfg.Backtest.Tree.Seed,
	}
	if err := treeConfig.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Tables:     excel.NewTableStore(logger),
		Runner:     loop.NewRunner(cfg.Backtest.Loop(), logger),
		treeConfig: treeConfig,
	}
	c.wireServices()
	return c, nil
}

func (c *Container) wireServices() {
	c.Backtests = app.NewBacktestService(c.Runner, c.Tables, c.ResultRepo, c.Logger)
	c.Comparisons = app.NewComparisonService(c.Tables, c.Tables, c.Logger)
}

// InitWithDatabase connects to the configured result store and applies the
// schema. It is a no-op when no database URL is configured.
func (c *Container) InitWithDatabase(ctx context.Context) error {
	if c.Config.Database.URL == "" {
		c.Logger.Debug("[Container] no database configured, runs are not persisted")
		return nil
	}

	conn, err := db.Open(ctx, c.Config.Database.Driver, c.Config.Database.URL)
	if err != nil {
		return err
	}
	if err := migration.NewRunner().Run(ctx, conn); err != nil {
		conn.Close()
		return errors.Wrap(err, "database migration failed")
	}

	c.DB = conn
	c.ResultRepo = db.NewResultRepository(conn)
	c.wireServices()
	c.Logger.Info("[Container] result store ready (%s)", conn.DriverName())
	return nil
}

// LoadDataset reads the configured dataset file
func (c *Container) LoadDataset(ctx context.Context) (*dataset.Dataset, error) {
	return excel.NewDatasetReader(c.Config.Data.DatasetPath, c.Logger).ReadDataset(ctx)
}

// TreeForecaster builds the lag-feature forecaster. Its factory is nil when the
// tree engine is switched off, which makes every step fall back to the mean.
func (c *Container) TreeForecaster() *forecast.TreeForecaster {
	var factory forecast.EstimatorFactory
	if c.Config.Backtest.TreeEngineEnabled() {
		cfg := c.treeConfig
		factory = func() ports.Estimator { return gbt.New(cfg) }
	}
	return forecast.NewTreeForecaster(c.Config.Backtest.TreeModelName, factory, c.Logger)
}

// SeasonalForecaster builds the SARIMA forecaster with per-step order selection
func (c *Container) SeasonalForecaster() *forecast.SeasonalForecaster {
	search := sarimax.DefaultSearchConfig()
	search.SeasonalPeriod = c.Config.Backtest.SeasonalPeriod
	if c.Config.Backtest.GridWorkers > 0 {
		search.Workers = c.Config.Backtest.GridWorkers
	}
	logger := c.Logger
	return forecast.NewSeasonalForecaster(SeasonalModel, func() ports.Estimator {
		return sarimax.NewEstimator(search, logger)
	}, logger)
}

// BacktestOptions returns the run options of a model family from configuration
func (c *Container) BacktestOptions(model string) app.BacktestOptions {
	opts := app.DefaultBacktestOptions(c.SummaryPath(model))
	opts.Column = c.Config.Data.Column
	opts.MinPeriods = c.Config.Backtest.MinPeriods
	opts.MaxCountries = c.Config.Backtest.MaxCountries
	opts.CheckpointEvery = c.Config.Backtest.CheckpointEvery
	return opts
}

// SummaryPath returns the summary file of a model family in the output directory
func (c *Container) SummaryPath(model string) string {
	return filepath.Join(c.Config.Data.OutputDir, app.SummaryFile(model))
}

// ComparisonPath returns the merged comparison file in the output directory
func (c *Container) ComparisonPath() string {
	return filepath.Join(c.Config.Data.OutputDir, app.ComparisonFile)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if err := c.Logger.Sync(); err != nil {
		c.Logger.Debug("[Container] logger sync: %v", err)
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
