package dashboard

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"happycast/domain/core"
	"happycast/domain/dataset"
	"happycast/internal/errors"
	"happycast/internal/testkit"
)

func fixture() *dataset.Dataset {
	return dataset.New("fixture", []dataset.Record{
		{Country: "Chile", Year: 2020, HappinessScore: 6.0, GDPPerCapita: 1.0},
		{Country: "Chile", Year: 2021, HappinessScore: 6.2, GDPPerCapita: 1.1},
		{Country: "Chile", Year: 2022, HappinessScore: 6.4, GDPPerCapita: 1.2},
		{Country: "Peru", Year: 2020, HappinessScore: 5.0, GDPPerCapita: 0.8},
		{Country: "Peru", Year: 2022, HappinessScore: 5.5, GDPPerCapita: 0.9},
		{Country: "Spain", Year: 2022, HappinessScore: 6.4, GDPPerCapita: 1.5},
		{Country: "Spain", Year: 2022, HappinessScore: 6.8, GDPPerCapita: 1.5},
		{Country: "Togo", Year: 2021, HappinessScore: 3.5, GDPPerCapita: 0.3},
	}, nil)
}

func TestViews_Options(t *testing.T) {
	v := NewViews(fixture())
	assert.Equal(t, []int{2020, 2021, 2022}, v.Years())
	assert.Equal(t, []core.Country{"Chile", "Peru", "Spain", "Togo"}, v.Countries())
	assert.Equal(t, 2022, v.LatestYear())
	assert.Zero(t, NewViews(dataset.New("empty", nil, nil)).LatestYear())
}

func TestViews_Rankings(t *testing.T) {
	v := NewViews(fixture())

	top := v.Top(2022, 2)
	want := []Ranked{
		{Rank: 1, Country: "Spain", Score: 6.8},
		{Rank: 2, Country: "Chile", Score: 6.4},
	}
	if diff := cmp.Diff(want, top); diff != "" {
		t.Errorf("Top mismatch (-want +got):\n%s", diff)
	}

	bottom := v.Bottom(2022, 0)
	require.Len(t, bottom, 4)
	assert.Equal(t, core.Country("Peru"), bottom[0].Country)
	// equal scores keep file order
	assert.Equal(t, core.Country("Chile"), bottom[1].Country)
	assert.Equal(t, core.Country("Spain"), bottom[2].Country)

	assert.Empty(t, v.Top(1999, 10))
}

func TestViews_CountrySeries(t *testing.T) {
	v := NewViews(fixture())

	s, err := v.CountrySeries("Spain")
	require.NoError(t, err)
	require.Len(t, s.Points, 1, "duplicate years are averaged")
	assert.InDelta(t, 6.6, s.Points[0].Value, 1e-9)

	s, err = v.CountrySeries("Chile")
	require.NoError(t, err)
	assert.InDelta(t, 6.2, s.Mean, 1e-9)
	assert.Equal(t, 6.0, s.Min)
	assert.Equal(t, 6.4, s.Max)

	_, err = v.CountrySeries("Atlantis")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.True(t, core.IsNotFoundError(err))
}

func TestViews_IncomeVsHappiness(t *testing.T) {
	v := NewViews(fixture())

	scatter, err := v.IncomeVsHappiness("Chile")
	require.NoError(t, err)
	require.Len(t, scatter.Points, 3)
	require.NotNil(t, scatter.Trendline)
	assert.InDelta(t, 2.0, scatter.Trendline.Slope, 1e-9)
	assert.InDelta(t, 4.0, scatter.Trendline.Intercept, 1e-9)
	assert.InDelta(t, 1.0, scatter.Trendline.RSquared, 1e-9)

	scatter, err = v.IncomeVsHappiness("Spain")
	require.NoError(t, err)
	assert.Nil(t, scatter.Trendline, "a single gdp value has no trendline")

	_, err = v.IncomeVsHappiness("Atlantis")
	assert.True(t, core.IsNotFoundError(err))
}

func TestViews_Trends(t *testing.T) {
	v := NewViews(fixture())

	trends := v.Trends([]core.Country{"Peru", "Chile", "Peru", "Atlantis"}, 2021, 2022)
	require.Len(t, trends, 2)
	assert.Equal(t, core.Country("Peru"), trends[0].Country)
	assert.Equal(t, []YearValue{{Year: 2022, Value: 5.5}}, trends[0].Points)
	assert.Len(t, trends[1].Points, 2)

	assert.Empty(t, v.Trends(nil, 2020, 2022))
	assert.Empty(t, v.Trends([]core.Country{"Togo"}, 2022, 2022))
}

func TestViews_YearMap(t *testing.T) {
	m := NewViews(fixture()).YearMap(2022)

	assert.Equal(t, [2]float64{3.5, 6.8}, m.Range)
	require.Len(t, m.Entries, 3)
	assert.Equal(t, core.Country("Spain"), m.Entries[2].Country)
	assert.InDelta(t, 6.6, m.Entries[2].Score, 1e-9)
}

func TestViews_SyntheticPanel(t *testing.T) {
	cfg := testkit.DefaultHappinessConfig()
	v := NewViews(testkit.NewHappinessGenerator(cfg).Dataset())

	assert.Equal(t, cfg.StartYear+cfg.Years-1, v.LatestYear())
	top := v.Top(v.LatestYear(), 10)
	require.Len(t, top, 10)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Score, top[i].Score)
	}

	scatter, err := v.IncomeVsHappiness(testkit.CountryName(0))
	require.NoError(t, err)
	require.NotNil(t, scatter.Trendline)
}

func TestViews_SkipMissingMeasures(t *testing.T) {
	noGDP := dataset.Record{Country: "Chile", Year: 2023, HappinessScore: 6.6}
	noGDP.SetMissing(dataset.ColumnGDP)
	noScore := dataset.Record{Country: "Peru", Year: 2023, GDPPerCapita: 1.0}
	noScore.SetMissing(dataset.ColumnHappiness)

	ds := fixture()
	ds = dataset.New("gaps", append(ds.Records, noGDP, noScore), nil)
	v := NewViews(ds)

	scatter, err := v.IncomeVsHappiness("Chile")
	require.NoError(t, err)
	assert.Len(t, scatter.Points, 3, "a year without gdp has no scatter point")

	s, err := v.CountrySeries("Chile")
	require.NoError(t, err)
	assert.Len(t, s.Points, 4, "happiness history keeps the year without gdp")

	top := v.Top(2023, 0)
	require.Len(t, top, 1)
	assert.Equal(t, core.Country("Chile"), top[0].Country)

	m := v.YearMap(2023)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, [2]float64{3.5, 6.8}, m.Range, "a blank score does not widen the range")

	peru, err := v.CountrySeries("Peru")
	require.NoError(t, err)
	assert.Len(t, peru.Points, 2)
}
