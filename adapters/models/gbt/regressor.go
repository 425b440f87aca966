// Package gbt implements a gradient-boosted regression tree ensemble with
// squared-error loss for lag-feature forecasting.
package gbt

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"happycast/domain/core"
	"happycast/domain/series"

	"gonum.org/v1/gonum/floats"
)

// Config holds the ensemble hyperparameters
type Config struct {
	NumTrees       int     `json:"num_trees" yaml:"num_trees"`
	LearningRate   float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxDepth       int     `json:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	Subsample      float64 `json:"subsample" yaml:"subsample"`
	Seed           int64   `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the fixed hyperparameters used by the backtest
func DefaultConfig() Config {
	return Config{
		NumTrees:       200,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 2,
		Subsample:      0.8,
		Seed:           7,
	}
}

// Validate rejects hyperparameters the fitter cannot run with
func (c Config) Validate() error {
	switch {
	case c.NumTrees <= 0:
		return fmt.Errorf("num_trees must be positive, got %d", c.NumTrees)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("learning_rate must be in (0, 1], got %g", c.LearningRate)
	case c.MaxDepth <= 0:
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	case c.MinSamplesLeaf <= 0:
		return fmt.Errorf("min_samples_leaf must be positive, got %d", c.MinSamplesLeaf)
	case c.Subsample <= 0 || c.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %g", c.Subsample)
	}
	return nil
}

type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// Regressor is a gradient-boosted tree ensemble. It is not safe for concurrent Fit calls.
type Regressor struct {
	cfg       Config
	base      float64
	trees     []*node
	nFeatures int
	fitted    bool
}

// New creates an unfitted regressor
func New(cfg Config) *Regressor {
	return &Regressor{cfg: cfg}
}

// Name identifies the estimator in logs
func (r *Regressor) Name() string {
	return "gbt"
}

// Trees returns the number of fitted trees
func (r *Regressor) Trees() int {
	return len(r.trees)
}

// Fit trains the ensemble on the lag features of a training window
func (r *Regressor) Fit(ctx context.Context, train series.Window) error {
	if !train.Lagged() {
		return fmt.Errorf("gbt requires lag features")
	}
	return r.FitMatrix(ctx, train.Features, train.Target)
}

// FitMatrix trains the ensemble on a row-major feature matrix
func (r *Regressor) FitMatrix(ctx context.Context, x [][]float64, y []float64) error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	if len(y) == 0 {
		return core.ErrEmptyInput
	}
	if len(x) != len(y) {
		return core.NewLengthMismatchError(len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return fmt.Errorf("feature rows are empty")
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d has a non-finite feature", i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("row %d has a non-finite target", i)
		}
	}

	r.fitted = false
	r.trees = r.trees[:0]
	r.nFeatures = width
	r.base = floats.Sum(y) / float64(len(y))

	rng := rand.New(rand.NewSource(r.cfg.Seed))
	n := len(y)
	sampleSize := int(math.Ceil(float64(n) * r.cfg.Subsample))
	if sampleSize < 1 {
		sampleSize = 1
	}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = r.base
	}
	residual := make([]float64, n)

	for t := 0; t < r.cfg.NumTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		idx := rng.Perm(n)[:sampleSize]
		tree := r.grow(x, residual, idx, 0)
		r.trees = append(r.trees, tree)

		for i := range pred {
			pred[i] += r.cfg.LearningRate * tree.predict(x[i])
		}
	}

	r.fitted = true
	return nil
}

// grow builds one regression tree on residuals restricted to idx
func (r *Regressor) grow(x [][]float64, residual []float64, idx []int, depth int) *node {
	sum := 0.0
	for _, i := range idx {
		sum += residual[i]
	}
	leaf := &node{leaf: true, value: sum / float64(len(idx))}

	minLeaf := r.cfg.MinSamplesLeaf
	if depth >= r.cfg.MaxDepth || len(idx) < 2*minLeaf {
		return leaf
	}

	n := float64(len(idx))
	parentScore := sum * sum / n
	bestGain := 1e-12
	bestFeature := -1
	bestThreshold := 0.0
	var bestOrder []int
	bestCut := 0

	order := make([]int, len(idx))
	for f := 0; f < r.nFeatures; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool {
			return x[order[a]][f] < x[order[b]][f]
		})

		left := 0.0
		for k := 1; k < len(order); k++ {
			left += residual[order[k-1]]
			if k < minLeaf || len(order)-k < minLeaf {
				continue
			}
			lo, hi := x[order[k-1]][f], x[order[k]][f]
			if lo == hi {
				continue
			}
			right := sum - left
			nl, nr := float64(k), n-float64(k)
			gain := left*left/nl + right*right/nr - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (lo + hi) / 2
				bestOrder = append(bestOrder[:0], order...)
				bestCut = k
			}
		}
	}

	if bestFeature < 0 {
		return leaf
	}

	leftIdx := append([]int(nil), bestOrder[:bestCut]...)
	rightIdx := append([]int(nil), bestOrder[bestCut:]...)
	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      r.grow(x, residual, leftIdx, depth+1),
		right:     r.grow(x, residual, rightIdx, depth+1),
	}
}

// Predict applies the ensemble to the lag features of each test row
func (r *Regressor) Predict(ctx context.Context, test series.Window) ([]float64, error) {
	if !test.Lagged() {
		return nil, fmt.Errorf("gbt requires lag features")
	}
	return r.PredictMatrix(ctx, test.Features)
}

// PredictMatrix applies the ensemble to a row-major feature matrix
func (r *Regressor) PredictMatrix(ctx context.Context, x [][]float64) ([]float64, error) {
	if !r.fitted {
		return nil, core.ErrNotFitted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != r.nFeatures {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), r.nFeatures)
		}
		v := r.base
		for _, tree := range r.trees {
			v += r.cfg.LearningRate * tree.predict(row)
		}
		out[i] = v
	}
	return out, nil
}
