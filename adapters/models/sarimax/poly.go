package sarimax

import "math"

// polyMul multiplies two lag polynomials given as coefficient slices, index = power of B
func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// lagPoly builds 1 + sign*(c1 B^step + c2 B^2step + ...)
func lagPoly(coef []float64, step int, sign float64) []float64 {
	out := make([]float64, len(coef)*step+1)
	out[0] = 1
	for i, c := range coef {
		out[(i+1)*step] = sign * c
	}
	return out
}

// diffPoly builds (1-B)^d (1-B^s)^D
func diffPoly(d, sd, s int) []float64 {
	out := []float64{1}
	for i := 0; i < d; i++ {
		out = polyMul(out, []float64{1, -1})
	}
	for i := 0; i < sd; i++ {
		out = polyMul(out, lagPoly([]float64{1}, s, -1))
	}
	return out
}

// constrain maps unconstrained reals onto the coefficients of a stationary
// polynomial 1 - c1 B - ... - cn B^n via partial autocorrelations
func constrain(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	phi := make([]float64, len(x))
	prev := make([]float64, len(x))
	for k := range x {
		r := x[k] / math.Sqrt(1+x[k]*x[k])
		copy(prev, phi[:k])
		phi[k] = r
		for j := 0; j < k; j++ {
			phi[j] = prev[j] - r*prev[k-1-j]
		}
	}
	return phi
}
