package backtest

import (
	"fmt"
	"sort"

	"happycast/domain/core"
	"happycast/domain/stats"
)

// NaiveModel is the column prefix of the persistence baseline
const NaiveModel = "naive"

// ColumnCountry is the join key of every result table
const ColumnCountry = "country"

// MetricColumn returns the column name for a metric of a model, e.g. sarimax_RMSE
func MetricColumn(model, metric string) string {
	return fmt.Sprintf("%s_%s", model, metric)
}

// MetricColumns returns the MAE and RMSE columns of a model
func MetricColumns(model string) []string {
	return []string{MetricColumn(model, "MAE"), MetricColumn(model, "RMSE")}
}

// MetricRow is one country's scores. Values absent from the map are unset.
type MetricRow struct {
	Country core.Country       `json:"country"`
	Values  map[string]float64 `json:"values"`
}

// NewMetricRow builds the row for one evaluated country
func NewMetricRow(country core.Country, model string, modelScores, naiveScores stats.Scores) MetricRow {
	return MetricRow{
		Country: country,
		Values: map[string]float64{
			MetricColumn(model, "MAE"):      modelScores.MAE,
			MetricColumn(model, "RMSE"):     modelScores.RMSE,
			MetricColumn(NaiveModel, "MAE"):  naiveScores.MAE,
			MetricColumn(NaiveModel, "RMSE"): naiveScores.RMSE,
		},
	}
}

// Get returns a metric value and whether it is set
func (r MetricRow) Get(column string) (float64, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// ResultTable is an ordered set of rows keyed by country
type ResultTable struct {
	Columns []string    `json:"columns"`
	Rows    []MetricRow `json:"rows"`

	index map[core.Country]int
}

// NewResultTable creates an empty table with the given metric columns
func NewResultTable(columns ...string) *ResultTable {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &ResultTable{Columns: cols, index: make(map[core.Country]int)}
}

// NewModelTable creates the table layout written by one model family
func NewModelTable(model string) *ResultTable {
	return NewResultTable(append(MetricColumns(model), MetricColumns(NaiveModel)...)...)
}

// Append adds a row, or replaces the row of a country already present.
// Columns not yet known are appended to the column list.
func (t *ResultTable) Append(row MetricRow) {
	if t.index == nil {
		t.reindex()
	}
	known := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		known[c] = true
	}
	extra := make([]string, 0)
	for c := range row.Values {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	t.Columns = append(t.Columns, extra...)

	if i, ok := t.index[row.Country]; ok {
		t.Rows[i] = row
		return
	}
	t.index[row.Country] = len(t.Rows)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows
func (t *ResultTable) Len() int {
	return len(t.Rows)
}

// Row returns the row of a country
func (t *ResultTable) Row(country core.Country) (MetricRow, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[country]
	if !ok {
		return MetricRow{}, false
	}
	return t.Rows[i], true
}

// Countries returns the countries in row order
func (t *ResultTable) Countries() []core.Country {
	out := make([]core.Country, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Country
	}
	return out
}

// SortBy orders rows ascending by a column. Rows without the column go last,
// and ties keep their current order.
func (t *ResultTable) SortBy(column string) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		vi, okI := t.Rows[i].Values[column]
		vj, okJ := t.Rows[j].Values[column]
		switch {
		case okI && okJ:
			return vi < vj
		default:
			return okI && !okJ
		}
	})
	t.reindex()
}

// Snapshot returns a copy safe to hand to a writer while the original keeps growing
func (t *ResultTable) Snapshot() *ResultTable {
	out := NewResultTable(t.Columns...)
	for _, r := range t.Rows {
		values := make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		out.Append(MetricRow{Country: r.Country, Values: values})
	}
	return out
}

func (t *ResultTable) reindex() {
	t.index = make(map[core.Country]int, len(t.Rows))
	for i, r := range t.Rows {
		t.index[r.Country] = i
	}
}
