package ports

import (
	"context"

	"happycast/domain/backtest"
	"happycast/domain/core"
)

// ResultRepository stores backtest runs and their per-country rows
type ResultRepository interface {
	CreateRun(ctx context.Context, run *backtest.Run) error
	SaveRows(ctx context.Context, runID core.RunID, rows []backtest.MetricRow) error
	FinishRun(ctx context.Context, run *backtest.Run) error

	GetRun(ctx context.Context, runID core.RunID) (*backtest.Run, error)
	ListRuns(ctx context.Context, model string, limit int) ([]*backtest.Run, error)
	LoadTable(ctx context.Context, runID core.RunID) (*backtest.ResultTable, error)
	LatestTable(ctx context.Context, model string) (*backtest.ResultTable, error)
}
