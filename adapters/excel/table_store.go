package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"happycast/domain/backtest"
	"happycast/domain/core"
	"happycast/internal"
	"happycast/internal/errors"

	"github.com/xuri/excelize/v2"
)

// TableStore writes and reads result tables as CSV or XLSX, chosen by file
// extension. Unset metrics are written as empty cells.
type TableStore struct {
	logger *internal.Logger
}

// NewTableStore creates a file-backed result table store
func NewTableStore(logger *internal.Logger) *TableStore {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &TableStore{logger: logger}
}

// WriteTable writes the table with a country column followed by its metric columns
func (s *TableStore) WriteTable(ctx context.Context, path string, table *backtest.ResultTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.StorageError(dir, err)
		}
	}

	records := tableRecords(table)
	var err error
	if fileTypeOf(path) == "xlsx" {
		err = writeXLSX(path, records)
	} else {
		err = writeCSV(path, records)
	}
	if err != nil {
		return errors.StorageError(path, err)
	}
	s.logger.Debug("[TableStore] wrote %d rows to %s", table.Len(), path)
	return nil
}

// ReadTable loads a table written by WriteTable or by any tool producing the
// same layout
func (s *TableStore) ReadTable(ctx context.Context, path string) (*backtest.ResultTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := NewDataReader(path, s.logger).ReadData()
	if err != nil {
		return nil, err
	}
	if !data.HasColumn(backtest.ColumnCountry) {
		return nil, errors.WithCode(errors.CodeInvalidInput,
			fmt.Errorf("%w: %s in %s", core.ErrMissingColumn, backtest.ColumnCountry, path))
	}

	var columns []string
	for _, h := range data.Headers {
		if h != backtest.ColumnCountry && h != "" {
			columns = append(columns, h)
		}
	}

	table := backtest.NewResultTable(columns...)
	for i, row := range data.Rows {
		country := row[backtest.ColumnCountry]
		if country == "" {
			continue
		}
		values := make(map[string]float64, len(columns))
		for _, c := range columns {
			cell := row[c]
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.InvalidInput(fmt.Sprintf("%s row %d: column %s is not numeric: %q", path, i+2, c, cell))
			}
			values[c] = v
		}
		table.Append(backtest.MetricRow{Country: core.Country(country), Values: values})
	}
	s.logger.Debug("[TableStore] read %d rows from %s", table.Len(), path)
	return table, nil
}

func tableRecords(table *backtest.ResultTable) [][]string {
	records := make([][]string, 0, table.Len()+1)
	header := append([]string{backtest.ColumnCountry}, table.Columns...)
	records = append(records, header)
	for _, row := range table.Rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, string(row.Country))
		for _, c := range table.Columns {
			if v, ok := row.Get(c); ok {
				rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				rec = append(rec, "")
			}
		}
		records = append(records, rec)
	}
	return records
}

func writeCSV(path string, records [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeXLSX(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(rec))
		for j, v := range rec {
			if i > 0 && j > 0 && v != "" {
				if num, err := strconv.ParseFloat(v, 64); err == nil {
					values[j] = num
					continue
				}
			}
			values[j] = v
		}
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
