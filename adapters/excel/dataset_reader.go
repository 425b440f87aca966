package excel

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"happycast/domain/core"
	"happycast/domain/dataset"
	"happycast/internal"
	"happycast/internal/errors"
)

// DatasetReader loads the happiness panel from a CSV or XLSX file
type DatasetReader struct {
	path   string
	reader *DataReader
	logger *internal.Logger
}

// NewDatasetReader creates a reader for the panel file at path
func NewDatasetReader(path string, logger *internal.Logger) *DatasetReader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &DatasetReader{path: path, reader: NewDataReader(path, logger), logger: logger}
}

// ReadDataset parses the file into records. Required columns must all be
// present. Rows without a country or a year are dropped; a blank or
// non-numeric measure is kept as missing on its record. Any other column whose
// non-empty cells are all numeric is kept as an extra column.
func (r *DatasetReader) ReadDataset(ctx context.Context) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.reader.ReadData()
	if err != nil {
		return nil, err
	}

	if missing := data.MissingColumns(dataset.RequiredColumns); len(missing) > 0 {
		return nil, errors.WithCode(errors.CodeInvalidInput,
			fmt.Errorf("%w: %s in %s", core.ErrMissingColumn, strings.Join(missing, ", "), r.path))
	}

	extra := numericExtraColumns(data)
	records := make([]dataset.Record, 0, len(data.Rows))
	dropped, incomplete := 0, 0
	for _, row := range data.Rows {
		rec, ok := toRecord(row, extra)
		if !ok {
			dropped++
			continue
		}
		if len(rec.Missing) > 0 {
			incomplete++
		}
		records = append(records, rec)
	}
	if dropped > 0 {
		r.logger.Warn("[DatasetReader] dropped %d of %d rows without country or year", dropped, len(data.Rows))
	}
	if incomplete > 0 {
		r.logger.Debug("[DatasetReader] %d rows have missing measures", incomplete)
	}
	if len(records) == 0 {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("%w: no usable rows in %s", core.ErrEmptyInput, r.path))
	}

	r.logger.Info("[DatasetReader] loaded %d records (%d extra columns) from %s", len(records), len(extra), r.path)
	return dataset.New(r.path, records, extra), nil
}

func toRecord(row RawRowData, extra []string) (dataset.Record, bool) {
	country := row[dataset.ColumnCountry]
	if country == "" {
		return dataset.Record{}, false
	}
	year, ok := parseYear(row[dataset.ColumnYear])
	if !ok {
		return dataset.Record{}, false
	}

	rec := dataset.Record{Country: core.Country(country), Year: year}
	if v, ok := parseNumber(row[dataset.ColumnHappiness]); ok {
		rec.HappinessScore = v
	} else {
		rec.SetMissing(dataset.ColumnHappiness)
	}
	if v, ok := parseNumber(row[dataset.ColumnGDP]); ok {
		rec.GDPPerCapita = v
	} else {
		rec.SetMissing(dataset.ColumnGDP)
	}
	for _, col := range extra {
		if v, ok := parseNumber(row[col]); ok {
			if rec.Extra == nil {
				rec.Extra = make(map[string]float64, len(extra))
			}
			rec.Extra[col] = v
		}
	}
	return rec, true
}

// numericExtraColumns returns non-required columns with at least one value
// where every non-empty cell parses as a number
func numericExtraColumns(data *ExcelData) []string {
	required := make(map[string]bool, len(dataset.RequiredColumns))
	for _, c := range dataset.RequiredColumns {
		required[c] = true
	}

	var extra []string
	for _, h := range data.Headers {
		if h == "" || required[h] {
			continue
		}
		seen, numeric := 0, true
		for _, row := range data.Rows {
			cell := row[h]
			if cell == "" {
				continue
			}
			seen++
			if _, ok := parseNumber(cell); !ok {
				numeric = false
				break
			}
		}
		if numeric && seen > 0 {
			extra = append(extra, h)
		}
	}
	return extra
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseYear accepts integral values, including spreadsheet floats like 2015.0
func parseYear(s string) (int, bool) {
	v, ok := parseNumber(s)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}
