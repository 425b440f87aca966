package series

import (
	"fmt"
	"sort"
)

// DefaultLags are the lag offsets used by the tree model
var DefaultLags = LagSet{1, 2, 3}

// LagSet is a sorted set of positive lag offsets
type LagSet []int

// NewLagSet validates, sorts and de-duplicates lag offsets
func NewLagSet(lags ...int) (LagSet, error) {
	if len(lags) == 0 {
		return nil, fmt.Errorf("lag set cannot be empty")
	}
	seen := make(map[int]bool, len(lags))
	set := make(LagSet, 0, len(lags))
	for _, l := range lags {
		if l <= 0 {
			return nil, fmt.Errorf("lag must be positive, got %d", l)
		}
		if !seen[l] {
			seen[l] = true
			set = append(set, l)
		}
	}
	sort.Ints(set)
	return set, nil
}

// Max returns the largest lag, i.e. the number of leading observations the lag table drops
func (l LagSet) Max() int {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1]
}

// Names returns feature column names lag_1, lag_2, ...
func (l LagSet) Names() []string {
	names := make([]string, len(l))
	for i, lag := range l {
		names[i] = fmt.Sprintf("lag_%d", lag)
	}
	return names
}

// LaggedRow holds the value at one period and its lagged predecessors.
// Lags[i] is the value LagSet[i] positions earlier.
type LaggedRow struct {
	Period int
	Target float64
	Lags   []float64
}

// LagTable is the feature table derived from one series; row i corresponds to
// series position i + Lags.Max()
type LagTable struct {
	Lags LagSet
	Rows []LaggedRow
}

// BuildLagTable derives lag-feature rows from a series. Rows whose lag window
// starts before the series are dropped. Built fresh on every call.
func BuildLagTable(s TimeSeries, lags LagSet) LagTable {
	offset := lags.Max()
	table := LagTable{Lags: lags}
	if s.Len() <= offset {
		return table
	}

	table.Rows = make([]LaggedRow, 0, s.Len()-offset)
	for t := offset; t < s.Len(); t++ {
		features := make([]float64, len(lags))
		for i, lag := range lags {
			features[i] = s.Points[t-lag].Value
		}
		table.Rows = append(table.Rows, LaggedRow{
			Period: s.Points[t].Period,
			Target: s.Points[t].Value,
			Lags:   features,
		})
	}
	return table
}

// Len returns the number of rows
func (t LagTable) Len() int {
	return len(t.Rows)
}

// Window returns rows [from, to) as an estimator window
func (t LagTable) Window(from, to int) Window {
	w := Window{
		Periods:  make([]int, 0, to-from),
		Target:   make([]float64, 0, to-from),
		Features: make([][]float64, 0, to-from),
	}
	for _, row := range t.Rows[from:to] {
		w.Periods = append(w.Periods, row.Period)
		w.Target = append(w.Target, row.Target)
		w.Features = append(w.Features, row.Lags)
	}
	return w
}
