package dataset

import (
	"fmt"
	"sort"

	"happycast/domain/core"
	"happycast/domain/series"
)

// Column names of the happiness panel
const (
	ColumnCountry   = "country"
	ColumnYear      = "year"
	ColumnHappiness = "happiness_score"
	ColumnGDP       = "gdp_per_capita"
)

// RequiredColumns must be present in every input file
var RequiredColumns = []string{ColumnCountry, ColumnYear, ColumnHappiness, ColumnGDP}

// Record is one country-year row of the panel. Missing lists the measures
// that were blank or unparsable in the source row; their fields are then zero.
type Record struct {
	Country        core.Country       `json:"country"`
	Year           int                `json:"year"`
	HappinessScore float64            `json:"happiness_score"`
	GDPPerCapita   float64            `json:"gdp_per_capita"`
	Extra          map[string]float64 `json:"extra,omitempty"`
	Missing        map[string]bool    `json:"missing,omitempty"`
}

// SetMissing marks a measure as absent
func (r *Record) SetMissing(column string) {
	if r.Missing == nil {
		r.Missing = make(map[string]bool, 2)
	}
	r.Missing[column] = true
}

// Has reports whether the record carries a value for column
func (r Record) Has(column string) bool {
	_, ok := r.Value(column)
	return ok
}

// Value returns the numeric value of a named column
func (r Record) Value(column string) (float64, bool) {
	if r.Missing[column] {
		return 0, false
	}
	switch column {
	case ColumnHappiness:
		return r.HappinessScore, true
	case ColumnGDP:
		return r.GDPPerCapita, true
	case ColumnYear:
		return float64(r.Year), true
	}
	v, ok := r.Extra[column]
	return v, ok
}

// Dataset is the loaded panel. It is immutable after New.
type Dataset struct {
	Source       string
	Records      []Record
	ExtraColumns []string

	byCountry map[core.Country][]int
	countries []core.Country
}

// New indexes records by country
func New(source string, records []Record, extraColumns []string) *Dataset {
	d := &Dataset{
		Source:       source,
		Records:      records,
		ExtraColumns: extraColumns,
		byCountry:    make(map[core.Country][]int),
	}
	for i, r := range records {
		if _, ok := d.byCountry[r.Country]; !ok {
			d.countries = append(d.countries, r.Country)
		}
		d.byCountry[r.Country] = append(d.byCountry[r.Country], i)
	}
	sort.Slice(d.countries, func(i, j int) bool { return d.countries[i] < d.countries[j] })
	return d
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Countries returns the distinct countries in ascending order
func (d *Dataset) Countries() []core.Country {
	out := make([]core.Country, len(d.countries))
	copy(out, d.countries)
	return out
}

// HasCountry reports whether any record belongs to country
func (d *Dataset) HasCountry(country core.Country) bool {
	_, ok := d.byCountry[country]
	return ok
}

// Years returns the distinct years in ascending order
func (d *Dataset) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for _, r := range d.Records {
		if !seen[r.Year] {
			seen[r.Year] = true
			years = append(years, r.Year)
		}
	}
	sort.Ints(years)
	return years
}

// ByCountry returns the records of one country in file order
func (d *Dataset) ByCountry(country core.Country) []Record {
	idx := d.byCountry[country]
	out := make([]Record, len(idx))
	for i, j := range idx {
		out[i] = d.Records[j]
	}
	return out
}

// InYear returns all records of one year in file order
func (d *Dataset) InYear(year int) []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out
}

// HasColumn reports whether column is a required column or a retained extra column
func (d *Dataset) HasColumn(column string) bool {
	for _, c := range RequiredColumns {
		if c == column {
			return true
		}
	}
	for _, c := range d.ExtraColumns {
		if c == column {
			return true
		}
	}
	return false
}

// Series extracts the yearly series of a column for one country. Records
// without a value for the column are left out, so the series may be shorter
// than the country's history or empty.
func (d *Dataset) Series(country core.Country, column string) (series.TimeSeries, error) {
	idx, ok := d.byCountry[country]
	if !ok {
		return series.TimeSeries{}, fmt.Errorf("%w: %s", core.ErrCountryNotFound, country)
	}
	if !d.HasColumn(column) {
		return series.TimeSeries{}, fmt.Errorf("%w: %s", core.ErrMissingColumn, column)
	}
	points := make([]series.Point, 0, len(idx))
	for _, j := range idx {
		r := d.Records[j]
		if v, ok := r.Value(column); ok {
			points = append(points, series.Point{Period: r.Year, Value: v})
		}
	}
	return series.New(country, points), nil
}
