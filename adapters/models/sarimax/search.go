package sarimax

import (
	"context"
	"math"
	"runtime"

	"happycast/domain/core"

	"golang.org/x/sync/errgroup"
)

// SearchConfig controls the AIC grid search
type SearchConfig struct {
	Bounds         GridBounds
	SeasonalPeriod int
	Workers        int
	Fit            FitOptions
}

// DefaultSearchConfig searches the default grid without seasonal terms
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Bounds:         DefaultGridBounds(),
		SeasonalPeriod: 1,
		Workers:        runtime.GOMAXPROCS(0),
		Fit:            DefaultFitOptions(),
	}
}

// Selection is the outcome of a grid search
type Selection struct {
	Spec       Spec
	Model      *Model
	AIC        float64
	Candidates int
	Fitted     int
}

// SelectOrder fits every grid candidate on y and returns the one with the
// lowest AIC. Candidates that fail to fit are ignored. Ties go to the
// candidate earliest in grid order. Returns core.ErrNoCandidate when nothing fits.
func SelectOrder(ctx context.Context, y []float64, cfg SearchConfig) (Selection, error) {
	grid := Grid(cfg.Bounds, cfg.SeasonalPeriod)
	models := make([]*Model, len(grid))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, spec := range grid {
		i, spec := i, spec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := Fit(gctx, y, spec, cfg.Fit)
			if err != nil {
				return nil
			}
			models[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Selection{}, err
	}
	if err := ctx.Err(); err != nil {
		return Selection{}, err
	}

	sel := Selection{AIC: math.Inf(1), Candidates: len(grid)}
	for _, m := range models {
		if m == nil {
			continue
		}
		sel.Fitted++
		aic := m.AIC()
		if math.IsNaN(aic) || math.IsInf(aic, 0) {
			continue
		}
		if aic < sel.AIC {
			sel.AIC = aic
			sel.Spec = m.Spec()
			sel.Model = m
		}
	}
	if sel.Model == nil {
		return sel, core.ErrNoCandidate
	}
	return sel, nil
}
