package dataset

import (
	"testing"

	"happycast/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	return New("memory", []Record{
		{Country: "Norway", Year: 2011, HappinessScore: 7.6, GDPPerCapita: 10.9},
		{Country: "Benin", Year: 2010, HappinessScore: 3.9, GDPPerCapita: 7.4, Extra: map[string]float64{"social_support": 0.4}},
		{Country: "Norway", Year: 2010, HappinessScore: 7.5, GDPPerCapita: 10.8},
		{Country: "Benin", Year: 2011, HappinessScore: 4.1, GDPPerCapita: 7.5},
	}, []string{"social_support"})
}

func TestDataset_Indexing(t *testing.T) {
	ds := sampleDataset()

	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, []core.Country{"Benin", "Norway"}, ds.Countries())
	assert.Equal(t, []int{2010, 2011}, ds.Years())
	assert.True(t, ds.HasCountry("Norway"))
	assert.False(t, ds.HasCountry("Atlantis"))
	assert.Len(t, ds.ByCountry("Benin"), 2)
	assert.Len(t, ds.InYear(2011), 2)
}

func TestDataset_SeriesSortedByYear(t *testing.T) {
	ds := sampleDataset()

	s, err := ds.Series("Norway", ColumnHappiness)
	require.NoError(t, err)
	assert.Equal(t, []int{2010, 2011}, s.Periods())
	assert.Equal(t, []float64{7.5, 7.6}, s.Values())
}

func TestDataset_SeriesErrors(t *testing.T) {
	ds := sampleDataset()

	_, err := ds.Series("Atlantis", ColumnHappiness)
	assert.ErrorIs(t, err, core.ErrCountryNotFound)

	_, err = ds.Series("Norway", "generosity")
	assert.ErrorIs(t, err, core.ErrMissingColumn)

	// a retained column the country never reports yields an empty series
	s, err := ds.Series("Norway", "social_support")
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestDataset_SeriesSkipsMissingMeasures(t *testing.T) {
	noGDP := Record{Country: "Chad", Year: 2011, HappinessScore: 4.3}
	noGDP.SetMissing(ColumnGDP)
	noScore := Record{Country: "Chad", Year: 2012, GDPPerCapita: 7.1}
	noScore.SetMissing(ColumnHappiness)

	ds := New("memory", []Record{
		{Country: "Chad", Year: 2010, HappinessScore: 4.2, GDPPerCapita: 7.0},
		noGDP,
		noScore,
	}, nil)

	happiness, err := ds.Series("Chad", ColumnHappiness)
	require.NoError(t, err)
	assert.Equal(t, []int{2010, 2011}, happiness.Periods())

	gdp, err := ds.Series("Chad", ColumnGDP)
	require.NoError(t, err)
	assert.Equal(t, []int{2010, 2012}, gdp.Periods())
	assert.Equal(t, []float64{7.0, 7.1}, gdp.Values())
}

func TestRecord_Value(t *testing.T) {
	r := Record{Year: 2020, HappinessScore: 5, GDPPerCapita: 9, Extra: map[string]float64{"generosity": 0.1}}

	v, ok := r.Value(ColumnGDP)
	assert.True(t, ok)
	assert.Equal(t, 9.0, v)

	v, ok = r.Value("generosity")
	assert.True(t, ok)
	assert.Equal(t, 0.1, v)

	_, ok = r.Value("missing")
	assert.False(t, ok)

	r.SetMissing(ColumnGDP)
	assert.False(t, r.Has(ColumnGDP))
	assert.True(t, r.Has(ColumnHappiness))
}
