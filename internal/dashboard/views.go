// Package dashboard computes the read-only views behind the happiness dashboard:
// rankings, per-country series, income scatter with trendline, trends and the
// yearly map.
package dashboard

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"happycast/domain/core"
	"happycast/domain/dataset"
	"happycast/internal/errors"
)

// DefaultRankSize is the length of the top and bottom rankings
const DefaultRankSize = 10

// DefaultCountry is preselected in the country dropdowns
const DefaultCountry core.Country = "United States"

// Ranked is one entry of a ranking
type Ranked struct {
	Rank    int          `json:"rank"`
	Country core.Country `json:"country"`
	Score   float64      `json:"happiness_score"`
}

// YearValue is one yearly observation
type YearValue struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// CountrySeries is the happiness series of one country with summary statistics
type CountrySeries struct {
	Country core.Country `json:"country"`
	Points  []YearValue  `json:"points"`
	Mean    float64      `json:"mean"`
	Min     float64      `json:"min"`
	Max     float64      `json:"max"`
}

// IncomePoint is one country-year of the income scatter
type IncomePoint struct {
	Year      int     `json:"year"`
	GDP       float64 `json:"gdp_per_capita"`
	Happiness float64 `json:"happiness_score"`
}

// Trendline is an ordinary least squares fit happiness = Intercept + Slope*gdp
type Trendline struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
}

// IncomeScatter is the income vs happiness view of one country.
// Trendline is nil when fewer than two distinct gdp values exist.
type IncomeScatter struct {
	Country   core.Country  `json:"country"`
	Points    []IncomePoint `json:"points"`
	Trendline *Trendline    `json:"trendline,omitempty"`
}

// Trend is one country's series inside a year range
type Trend struct {
	Country core.Country `json:"country"`
	Points  []YearValue  `json:"points"`
}

// MapEntry is the mean happiness of one country in one year
type MapEntry struct {
	Country core.Country `json:"country"`
	Score   float64      `json:"happiness_score"`
}

// YearMap feeds the choropleth. Range spans all scores of the dataset so the
// color scale stays fixed across years.
type YearMap struct {
	Year    int        `json:"year"`
	Entries []MapEntry `json:"entries"`
	Range   [2]float64 `json:"range"`
}

// Views answers dashboard queries over an immutable dataset
type Views struct {
	ds *dataset.Dataset
}

// NewViews creates the views of a dataset
func NewViews(ds *dataset.Dataset) *Views {
	return &Views{ds: ds}
}

// Years returns the distinct years, ascending
func (v *Views) Years() []int {
	return v.ds.Years()
}

// Countries returns the distinct countries, ascending
func (v *Views) Countries() []core.Country {
	return v.ds.Countries()
}

// LatestYear returns the most recent year, or 0 for an empty dataset
func (v *Views) LatestYear() int {
	years := v.ds.Years()
	if len(years) == 0 {
		return 0
	}
	return years[len(years)-1]
}

// Top ranks the n happiest countries of a year. Ties keep file order.
func (v *Views) Top(year, n int) []Ranked {
	return v.rank(year, n, func(a, b float64) bool { return a > b })
}

// Bottom ranks the n least happy countries of a year
func (v *Views) Bottom(year, n int) []Ranked {
	return v.rank(year, n, func(a, b float64) bool { return a < b })
}

func (v *Views) rank(year, n int, before func(a, b float64) bool) []Ranked {
	if n <= 0 {
		n = DefaultRankSize
	}
	var records []dataset.Record
	for _, r := range v.ds.InYear(year) {
		if r.Has(dataset.ColumnHappiness) {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return before(records[i].HappinessScore, records[j].HappinessScore)
	})
	if len(records) > n {
		records = records[:n]
	}
	out := make([]Ranked, len(records))
	for i, r := range records {
		out[i] = Ranked{Rank: i + 1, Country: r.Country, Score: r.HappinessScore}
	}
	return out
}

// CountrySeries returns the happiness series of a country
func (v *Views) CountrySeries(country core.Country) (*CountrySeries, error) {
	ts, err := v.ds.Series(country, dataset.ColumnHappiness)
	if err != nil {
		return nil, errors.WithCode(errors.CodeNotFound, err)
	}

	out := &CountrySeries{Country: country, Points: make([]YearValue, 0, ts.Len())}
	for _, p := range ts.Points {
		out.Points = append(out.Points, YearValue{Year: p.Period, Value: p.Value})
	}
	if ts.Len() == 0 {
		return out, nil
	}

	data := stats.Float64Data(ts.Values())
	if out.Mean, err = data.Mean(); err != nil {
		return nil, errors.Wrapf(err, "failed to summarize %s", country)
	}
	out.Min, _ = data.Min()
	out.Max, _ = data.Max()
	return out, nil
}

// IncomeVsHappiness returns the gdp/happiness scatter of a country with an OLS
// trendline. Years missing either measure are left out.
func (v *Views) IncomeVsHappiness(country core.Country) (*IncomeScatter, error) {
	if !v.ds.HasCountry(country) {
		return nil, errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: %s", core.ErrCountryNotFound, country))
	}
	var records []dataset.Record
	for _, r := range v.ds.ByCountry(country) {
		if r.Has(dataset.ColumnGDP) && r.Has(dataset.ColumnHappiness) {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Year < records[j].Year })

	out := &IncomeScatter{Country: country, Points: make([]IncomePoint, len(records))}
	xs := make([]float64, len(records))
	ys := make([]float64, len(records))
	distinct := make(map[float64]bool)
	for i, r := range records {
		out.Points[i] = IncomePoint{Year: r.Year, GDP: r.GDPPerCapita, Happiness: r.HappinessScore}
		xs[i], ys[i] = r.GDPPerCapita, r.HappinessScore
		distinct[r.GDPPerCapita] = true
	}

	if len(distinct) >= 2 {
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		out.Trendline = &Trendline{
			Intercept: alpha,
			Slope:     beta,
			RSquared:  stat.RSquared(xs, ys, nil, alpha, beta),
		}
	}
	return out, nil
}

// Trends returns the series of the selected countries restricted to
// [fromYear, toYear], in selection order. Countries without data in the range
// are left out; an empty selection gives an empty result.
func (v *Views) Trends(countries []core.Country, fromYear, toYear int) []Trend {
	out := make([]Trend, 0, len(countries))
	seen := make(map[core.Country]bool, len(countries))
	for _, country := range countries {
		if seen[country] {
			continue
		}
		seen[country] = true

		ts, err := v.ds.Series(country, dataset.ColumnHappiness)
		if err != nil {
			continue
		}
		var points []YearValue
		for _, p := range ts.Points {
			if p.Period >= fromYear && p.Period <= toYear {
				points = append(points, YearValue{Year: p.Period, Value: p.Value})
			}
		}
		if len(points) > 0 {
			out = append(out, Trend{Country: country, Points: points})
		}
	}
	return out
}

// YearMap averages happiness per country for one year
func (v *Views) YearMap(year int) *YearMap {
	byCountry := make(map[core.Country][]float64)
	for _, r := range v.ds.InYear(year) {
		if r.Has(dataset.ColumnHappiness) {
			byCountry[r.Country] = append(byCountry[r.Country], r.HappinessScore)
		}
	}

	out := &YearMap{Year: year, Entries: make([]MapEntry, 0, len(byCountry))}
	for country, scores := range byCountry {
		mean, _ := stats.Mean(scores)
		out.Entries = append(out.Entries, MapEntry{Country: country, Score: mean})
	}
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].Country < out.Entries[j].Country })

	all := make([]float64, 0, len(v.ds.Records))
	for _, r := range v.ds.Records {
		if r.Has(dataset.ColumnHappiness) {
			all = append(all, r.HappinessScore)
		}
	}
	if len(all) > 0 {
		out.Range[0], _ = stats.Min(all)
		out.Range[1], _ = stats.Max(all)
	}
	return out
}
