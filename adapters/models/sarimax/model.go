package sarimax

import (
	"context"
	"fmt"
	"math"

	"happycast/domain/core"

	"gonum.org/v1/gonum/optimize"
)

// minVariance keeps the likelihood finite on perfectly fitted series
const minVariance = 1e-10

// FitOptions tune the likelihood optimizer
type FitOptions struct {
	MaxIterations      int
	MaxFuncEvaluations int
}

// DefaultFitOptions returns the optimizer limits used by the grid search
func DefaultFitOptions() FitOptions {
	return FitOptions{MaxIterations: 400, MaxFuncEvaluations: 2000}
}

// Model is a fitted SARIMA model. The zero value is not usable; call Fit.
type Model struct {
	spec    Spec
	history []float64
	diff    []float64
	w       []float64
	ar      []float64 // expanded AR coefficients, index k is the weight of w[t-k]
	ma      []float64 // expanded MA coefficients, index k is the weight of e[t-k]
	resid   []float64
	sigma2  float64
	logLik  float64
	nEff    int
}

// Spec returns the model structure
func (m *Model) Spec() Spec { return m.spec }

// AIC returns 2k - 2 logL
func (m *Model) AIC() float64 {
	return 2*float64(m.spec.NumParams()) - 2*m.logLik
}

// LogLikelihood returns the conditional Gaussian log-likelihood
func (m *Model) LogLikelihood() float64 { return m.logLik }

// Sigma2 returns the innovation variance estimate
func (m *Model) Sigma2() float64 { return m.sigma2 }

// AR returns the expanded autoregressive weights, seasonal terms multiplied in
func (m *Model) AR() []float64 { return append([]float64(nil), m.ar[1:]...) }

// MA returns the expanded moving-average weights, seasonal terms multiplied in
func (m *Model) MA() []float64 { return append([]float64(nil), m.ma[1:]...) }

// Fit estimates a SARIMA model on y by minimizing the conditional sum of squares
func Fit(ctx context.Context, y []float64, spec Spec, opts FitOptions) (*Model, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("observation %d is not finite", i)
		}
	}

	s := spec.Seasonal.S
	if !spec.seasonal() {
		s = 1
	}
	dp := diffPoly(spec.Order.D, spec.Seasonal.D, s)
	deg := len(dp) - 1
	if len(y) <= deg {
		return nil, core.NewInsufficientDataError(len(y), deg+1)
	}

	w := make([]float64, len(y)-deg)
	for t := range w {
		v := 0.0
		for k, c := range dp {
			v += c * y[t+deg-k]
		}
		w[t] = v
	}

	m := &Model{
		spec:    spec,
		history: append([]float64(nil), y...),
		diff:    dp,
		w:       w,
	}

	arOrder := spec.Order.P
	if spec.seasonal() {
		arOrder += spec.Seasonal.P * s
	}
	m.nEff = len(w) - arOrder
	if m.nEff <= spec.NumParams() {
		return nil, core.NewInsufficientDataError(m.nEff, spec.NumParams()+1)
	}

	var params []float64
	if free := spec.NumParams() - 1; free > 0 {
		objective := func(x []float64) float64 {
			ar, ma := expand(spec, x, s)
			_, sse := residuals(w, ar, ma)
			if math.IsNaN(sse) || math.IsInf(sse, 0) {
				return math.Inf(1)
			}
			return sse
		}
		result, err := optimize.Minimize(optimize.Problem{Func: objective}, make([]float64, free), &optimize.Settings{
			MajorIterations: opts.MaxIterations,
			FuncEvaluations: opts.MaxFuncEvaluations,
		}, &optimize.NelderMead{})
		if result == nil || !finite(result.X) {
			if err == nil {
				err = fmt.Errorf("optimizer returned non-finite parameters")
			}
			return nil, core.NewEstimatorError(spec.String(), err)
		}
		params = result.X
	}
	m.ar, m.ma = expand(spec, params, s)
	m.resid, _ = residuals(w, m.ar, m.ma)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sse := 0.0
	for _, e := range m.resid[arOrder:] {
		sse += e * e
	}
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return nil, core.NewEstimatorError(spec.String(), fmt.Errorf("residuals diverged"))
	}
	m.sigma2 = math.Max(sse/float64(m.nEff), minVariance)
	m.logLik = -0.5 * float64(m.nEff) * (math.Log(2*math.Pi*m.sigma2) + 1)
	return m, nil
}

// expand splits x into AR, seasonal AR, MA and seasonal MA groups and
// multiplies them out into lag weights
func expand(spec Spec, x []float64, s int) (ar, ma []float64) {
	p, q := spec.Order.P, spec.Order.Q
	sp, sq := 0, 0
	if spec.seasonal() {
		sp, sq = spec.Seasonal.P, spec.Seasonal.Q
	}

	take := func(n int) []float64 {
		part := x[:n]
		x = x[n:]
		return part
	}
	phi := constrain(take(p))
	sphi := constrain(take(sp))
	theta := constrain(take(q))
	stheta := constrain(take(sq))

	arPoly := polyMul(lagPoly(phi, 1, -1), lagPoly(sphi, s, -1))
	ar = make([]float64, len(arPoly))
	for k := 1; k < len(arPoly); k++ {
		ar[k] = -arPoly[k]
	}
	ma = polyMul(lagPoly(theta, 1, -1), lagPoly(stheta, s, -1))
	return ar, ma
}

// residuals runs the innovation recursion with pre-sample errors set to zero
func residuals(w, ar, ma []float64) ([]float64, float64) {
	start := len(ar) - 1
	e := make([]float64, len(w))
	sse := 0.0
	for t := start; t < len(w); t++ {
		v := w[t]
		for k := 1; k < len(ar); k++ {
			v -= ar[k] * w[t-k]
		}
		for k := 1; k < len(ma) && k <= t; k++ {
			v -= ma[k] * e[t-k]
		}
		e[t] = v
		sse += v * v
	}
	return e, sse
}

// Forecast returns h out-of-sample predictions on the original scale
func (m *Model) Forecast(h int) []float64 {
	if h <= 0 {
		return nil
	}
	w := append(make([]float64, 0, len(m.w)+h), m.w...)
	e := append(make([]float64, 0, len(m.resid)+h), m.resid...)
	for i := 0; i < h; i++ {
		t := len(w)
		v := 0.0
		for k := 1; k < len(m.ar); k++ {
			if t-k >= 0 {
				v += m.ar[k] * w[t-k]
			}
		}
		for k := 1; k < len(m.ma); k++ {
			if t-k >= 0 {
				v += m.ma[k] * e[t-k]
			}
		}
		w = append(w, v)
		e = append(e, 0)
	}

	y := append(make([]float64, 0, len(m.history)+h), m.history...)
	out := make([]float64, h)
	for i := 0; i < h; i++ {
		t := len(y)
		v := w[len(m.w)+i]
		for k := 1; k < len(m.diff); k++ {
			v -= m.diff[k] * y[t-k]
		}
		y = append(y, v)
		out[i] = v
	}
	return out
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
