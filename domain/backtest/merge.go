package backtest

import (
	"sort"

	"happycast/domain/core"
)

// Suffixes applied to metric columns present on both sides of a merge
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// Merge outer-joins two tables on country. The result holds one row per country
// in the union of both tables, sorted by country. A column present on both sides
// is kept twice, suffixed _x (left) and _y (right). Metrics of a side that lacks
// the country stay unset.
func Merge(left, right *ResultTable) *ResultTable {
	inLeft := make(map[string]bool, len(left.Columns))
	for _, c := range left.Columns {
		inLeft[c] = true
	}
	inRight := make(map[string]bool, len(right.Columns))
	for _, c := range right.Columns {
		inRight[c] = true
	}

	leftName := func(c string) string {
		if inRight[c] {
			return c + LeftSuffix
		}
		return c
	}
	rightName := func(c string) string {
		if inLeft[c] {
			return c + RightSuffix
		}
		return c
	}

	columns := make([]string, 0, len(left.Columns)+len(right.Columns))
	for _, c := range left.Columns {
		columns = append(columns, leftName(c))
	}
	for _, c := range right.Columns {
		columns = append(columns, rightName(c))
	}

	countrySet := make(map[core.Country]bool)
	for _, r := range left.Rows {
		countrySet[r.Country] = true
	}
	for _, r := range right.Rows {
		countrySet[r.Country] = true
	}
	countries := make([]core.Country, 0, len(countrySet))
	for c := range countrySet {
		countries = append(countries, c)
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i] < countries[j] })

	merged := NewResultTable(columns...)
	for _, country := range countries {
		values := make(map[string]float64)
		if row, ok := left.Row(country); ok {
			for c, v := range row.Values {
				values[leftName(c)] = v
			}
		}
		if row, ok := right.Row(country); ok {
			for c, v := range row.Values {
				values[rightName(c)] = v
			}
		}
		merged.Append(MetricRow{Country: country, Values: values})
	}
	return merged
}
