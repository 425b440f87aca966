package series

import (
	"fmt"
	"sort"
	"time"

	"happycast/domain/core"
)

// MinPeriods is the minimum number of distinct periods for a series to be backtested
const MinPeriods = 8

// Point is one observation of a yearly series
type Point struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// TimeSeries is an ordered sequence of observations for one country.
// Points are sorted ascending by period and periods are unique.
type TimeSeries struct {
	Key    core.Country `json:"key"`
	Points []Point      `json:"points"`
}

// New builds a TimeSeries from unordered points. Duplicate periods are averaged.
func New(key core.Country, points []Point) TimeSeries {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Period < sorted[j].Period
	})

	merged := make([]Point, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i
		sum := 0.0
		for j < len(sorted) && sorted[j].Period == sorted[i].Period {
			sum += sorted[j].Value
			j++
		}
		merged = append(merged, Point{Period: sorted[i].Period, Value: sum / float64(j-i)})
		i = j
	}

	return TimeSeries{Key: key, Points: merged}
}

// FromValues builds a series with consecutive periods starting at firstPeriod
func FromValues(key core.Country, firstPeriod int, values []float64) TimeSeries {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Period: firstPeriod + i, Value: v}
	}
	return TimeSeries{Key: key, Points: points}
}

// Len returns the number of observations
func (s TimeSeries) Len() int {
	return len(s.Points)
}

// Qualifies reports whether the series has at least minPeriods distinct periods
func (s TimeSeries) Qualifies(minPeriods int) bool {
	return s.Len() >= minPeriods
}

// Values returns a copy of the observation values in period order
func (s TimeSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Periods returns the periods in ascending order
func (s TimeSeries) Periods() []int {
	periods := make([]int, len(s.Points))
	for i, p := range s.Points {
		periods[i] = p.Period
	}
	return periods
}

// Value returns the value at position i
func (s TimeSeries) Value(i int) float64 {
	return s.Points[i].Value
}

// Slice returns the sub-series [from, to) sharing the underlying points
func (s TimeSeries) Slice(from, to int) TimeSeries {
	return TimeSeries{Key: s.Key, Points: s.Points[from:to]}
}

// Dates maps yearly periods onto January 1st, the index the statistical estimator expects
func (s TimeSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = YearStart(p.Period)
	}
	return dates
}

// YearStart returns YYYY-01-01 UTC
func YearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func (s TimeSeries) String() string {
	if s.Len() == 0 {
		return fmt.Sprintf("%s[empty]", s.Key)
	}
	return fmt.Sprintf("%s[%d..%d, n=%d]", s.Key, s.Points[0].Period, s.Points[s.Len()-1].Period, s.Len())
}
