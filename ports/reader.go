package ports

import (
	"context"

	"happycast/domain/backtest"
	"happycast/domain/dataset"
)

// DatasetReader loads the happiness panel from a tabular source
type DatasetReader interface {
	ReadDataset(ctx context.Context) (*dataset.Dataset, error)
}

// ResultWriter persists a result table to a flat file
type ResultWriter interface {
	WriteTable(ctx context.Context, path string, table *backtest.ResultTable) error
}

// ResultTableReader loads a previously written result table.
// Implementations return an error satisfying core.IsNotFoundError when the file is absent.
type ResultTableReader interface {
	ReadTable(ctx context.Context, path string) (*backtest.ResultTable, error)
}
