package series

// Window is a contiguous block of observations handed to an estimator.
// Features is nil for raw windows and holds one lag vector per row otherwise.
type Window struct {
	Periods  []int
	Target   []float64
	Features [][]float64
}

// Len returns the number of rows in the window
func (w Window) Len() int {
	return len(w.Target)
}

// IsEmpty reports whether the window has no rows
func (w Window) IsEmpty() bool {
	return len(w.Target) == 0
}

// Lagged reports whether the window carries lag features
func (w Window) Lagged() bool {
	return w.Features != nil
}

// Last returns the final target value; callers must check IsEmpty first
func (w Window) Last() float64 {
	return w.Target[len(w.Target)-1]
}

// RawWindow returns series positions [from, to) as a window without features
func RawWindow(s TimeSeries, from, to int) Window {
	w := Window{
		Periods: make([]int, 0, to-from),
		Target:  make([]float64, 0, to-from),
	}
	for _, p := range s.Points[from:to] {
		w.Periods = append(w.Periods, p.Period)
		w.Target = append(w.Target, p.Value)
	}
	return w
}

// Split is the transient (train, test) pair of one walk-forward step.
// Step is the series position of the first test period.
type Split struct {
	Step  int
	Train Window
	Test  Window
}
