// Package sarimax fits seasonal ARIMA models by conditional sum of squares
// and selects orders by AIC over a small grid.
package sarimax

import "fmt"

// Order is the non-seasonal (p, d, q) order
type Order struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

// SeasonalOrder is the seasonal (P, D, Q, s) order. S <= 1 means no seasonal part.
type SeasonalOrder struct {
	P int `json:"P"`
	D int `json:"D"`
	Q int `json:"Q"`
	S int `json:"s"`
}

// Spec fully describes a SARIMA model structure
type Spec struct {
	Order    Order         `json:"order"`
	Seasonal SeasonalOrder `json:"seasonal_order"`
}

// FallbackSpec is used when no grid candidate fits
var FallbackSpec = Spec{Order: Order{P: 1, D: 1, Q: 1}}

func (s Spec) String() string {
	return fmt.Sprintf("(%d,%d,%d)(%d,%d,%d,%d)",
		s.Order.P, s.Order.D, s.Order.Q,
		s.Seasonal.P, s.Seasonal.D, s.Seasonal.Q, s.Seasonal.S)
}

// seasonal reports whether the spec carries seasonal terms
func (s Spec) seasonal() bool {
	return s.Seasonal.S > 1
}

// NumParams counts estimated parameters including the innovation variance
func (s Spec) NumParams() int {
	n := s.Order.P + s.Order.Q + 1
	if s.seasonal() {
		n += s.Seasonal.P + s.Seasonal.Q
	}
	return n
}

// Validate rejects negative orders and seasonal terms without a period
func (s Spec) Validate() error {
	if s.Order.P < 0 || s.Order.D < 0 || s.Order.Q < 0 {
		return fmt.Errorf("negative order in %s", s)
	}
	if s.Seasonal.P < 0 || s.Seasonal.D < 0 || s.Seasonal.Q < 0 {
		return fmt.Errorf("negative seasonal order in %s", s)
	}
	if !s.seasonal() && (s.Seasonal.P != 0 || s.Seasonal.D != 0 || s.Seasonal.Q != 0) {
		return fmt.Errorf("seasonal terms need a period > 1 in %s", s)
	}
	return nil
}

// GridBounds bounds the order search
type GridBounds struct {
	MaxP  int
	MaxQ  int
	MaxSP int
	MaxSQ int
}

// DefaultGridBounds searches p,q in [0,2] and P,Q in [0,1]
func DefaultGridBounds() GridBounds {
	return GridBounds{MaxP: 2, MaxQ: 2, MaxSP: 1, MaxSQ: 1}
}

// Grid enumerates candidate specs in a fixed order. Differencing orders d and D
// range over {0, 1}. Seasonal terms are only emitted when period > 1.
func Grid(bounds GridBounds, period int) []Spec {
	var specs []Spec
	for p := 0; p <= bounds.MaxP; p++ {
		for d := 0; d <= 1; d++ {
			for q := 0; q <= bounds.MaxQ; q++ {
				for sp := 0; sp <= bounds.MaxSP; sp++ {
					for sd := 0; sd <= 1; sd++ {
						for sq := 0; sq <= bounds.MaxSQ; sq++ {
							if period <= 1 && (sp != 0 || sd != 0 || sq != 0) {
								continue
							}
							spec := Spec{Order: Order{P: p, D: d, Q: q}}
							if period > 1 {
								spec.Seasonal = SeasonalOrder{P: sp, D: sd, Q: sq, S: period}
							}
							specs = append(specs, spec)
						}
					}
				}
			}
		}
	}
	return specs
}
