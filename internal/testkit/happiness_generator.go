package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"

	"happycast/domain/core"
	"happycast/domain/dataset"
)

// HappinessGeneratorConfig configures the synthetic panel generator
type HappinessGeneratorConfig struct {
	Countries      int     `json:"countries"`
	StartYear      int     `json:"start_year"`
	Years          int     `json:"years"`
	ShortCountries int     `json:"short_countries"`
	ShortYears     int     `json:"short_years"`
	BaseMin        float64 `json:"base_min"`
	BaseMax        float64 `json:"base_max"`
	TrendSD        float64 `json:"trend_sd"`
	NoiseSD        float64 `json:"noise_sd"`
	GDPSlope       float64 `json:"gdp_slope"`
	Seed           int64   `json:"seed"`
}

// DefaultHappinessConfig returns a panel shaped like the world happiness data
func DefaultHappinessConfig() HappinessGeneratorConfig {
	return HappinessGeneratorConfig{
		Countries:      40,
		StartYear:      2005,
		Years:          18,
		ShortCountries: 4,
		ShortYears:     5,
		BaseMin:        3.5,
		BaseMax:        7.5,
		TrendSD:        0.03,
		NoiseSD:        0.15,
		GDPSlope:       0.35,
		Seed:           42,
	}
}

var countryNames = []string{
	"Afghanistan", "Argentina", "Australia", "Austria", "Bangladesh", "Belgium",
	"Bolivia", "Brazil", "Bulgaria", "Cambodia", "Canada", "Chile", "Colombia",
	"Costa Rica", "Denmark", "Ecuador", "Egypt", "Estonia", "Ethiopia", "Finland",
	"France", "Germany", "Ghana", "Greece", "India", "Indonesia", "Ireland",
	"Italy", "Japan", "Kenya", "Mexico", "Morocco", "Nepal", "Netherlands",
	"Nigeria", "Norway", "Peru", "Poland", "Portugal", "Senegal", "Spain",
	"Sweden", "Thailand", "Uganda", "Uruguay", "Vietnam", "Zambia",
}

// HappinessGenerator produces a seeded country × year panel with a per-country
// level and trend, gaussian noise and gdp correlated with happiness
type HappinessGenerator struct {
	config HappinessGeneratorConfig
	rng    *rand.Rand
}

// NewHappinessGenerator creates a generator
func NewHappinessGenerator(config HappinessGeneratorConfig) *HappinessGenerator {
	return &HappinessGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// CountryName returns the i-th generated country name
func CountryName(i int) core.Country {
	if i < len(countryNames) {
		return core.Country(countryNames[i])
	}
	return core.Country(fmt.Sprintf("Country %03d", i+1))
}

// Records generates the panel. The last ShortCountries countries only get
// ShortYears years of data.
func (g *HappinessGenerator) Records() []dataset.Record {
	cfg := g.config
	var records []dataset.Record
	for i := 0; i < cfg.Countries; i++ {
		country := CountryName(i)
		years := cfg.Years
		if i >= cfg.Countries-cfg.ShortCountries {
			years = cfg.ShortYears
		}

		level := cfg.BaseMin + g.rng.Float64()*(cfg.BaseMax-cfg.BaseMin)
		trend := g.rng.NormFloat64() * cfg.TrendSD
		gdpBase := 0.5 + g.rng.Float64()
		for y := 0; y < years; y++ {
			score := level + trend*float64(y) + g.rng.NormFloat64()*cfg.NoiseSD
			score = math.Max(0, math.Min(10, score))
			gdp := gdpBase + cfg.GDPSlope*(score-cfg.BaseMin) + g.rng.NormFloat64()*0.05
			records = append(records, dataset.Record{
				Country:        country,
				Year:           cfg.StartYear + y,
				HappinessScore: round(score, 3),
				GDPPerCapita:   round(math.Max(0, gdp), 3),
			})
		}
	}
	return records
}

// Dataset generates the panel as a dataset
func (g *HappinessGenerator) Dataset() *dataset.Dataset {
	return dataset.New("synthetic", g.Records(), nil)
}

// WriteCSV writes the panel with the required column header
func (g *HappinessGenerator) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dataset.RequiredColumns); err != nil {
		return err
	}
	for _, r := range g.Records() {
		if err := cw.Write([]string{
			string(r.Country),
			strconv.Itoa(r.Year),
			strconv.FormatFloat(r.HappinessScore, 'f', -1, 64),
			strconv.FormatFloat(r.GDPPerCapita, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
