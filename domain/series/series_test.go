package series

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestNew_SortsAndAveragesDuplicates(t *testing.T) {
	s := New("Chile", []Point{
		{Period: 2012, Value: 6.0},
		{Period: 2010, Value: 5.0},
		{Period: 2011, Value: 5.4},
		{Period: 2010, Value: 5.2},
	})

	if diff := cmp.Diff([]int{2010, 2011, 2012}, s.Periods()); diff != "" {
		t.Errorf("Periods() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{5.1, 5.4, 6.0}, s.Values(), approx); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		min  int
		want bool
	}{
		{1, true},
		{3, true},
		{4, false},
		{MinPeriods, false},
	}
	for _, tt := range tests {
		if got := s.Qualifies(tt.min); got != tt.want {
			t.Errorf("Qualifies(%d) = %v, want %v", tt.min, got, tt.want)
		}
	}
}

func TestFromValuesAndDates(t *testing.T) {
	s := FromValues("Peru", 2015, []float64{1, 2, 3})

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if got := s.Points[2].Period; got != 2017 {
		t.Errorf("last period = %d, want 2017", got)
	}
	if got, want := s.Dates()[1], time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Dates()[1] = %v, want %v", got, want)
	}
	if got := s.String(); got != "Peru[2015..2017, n=3]" {
		t.Errorf("String() = %q", got)
	}
}

func TestNewLagSet(t *testing.T) {
	tests := []struct {
		name    string
		in      []int
		want    LagSet
		wantErr bool
	}{
		{"sorted and deduplicated", []int{3, 1, 2, 1}, LagSet{1, 2, 3}, false},
		{"single", []int{2}, LagSet{2}, false},
		{"empty", nil, nil, true},
		{"zero lag", []int{1, 0}, nil, true},
		{"negative lag", []int{-1}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLagSet(tt.in...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLagSet(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewLagSet(%v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}

	lags := LagSet{1, 2, 3}
	if lags.Max() != 3 {
		t.Errorf("Max() = %d, want 3", lags.Max())
	}
	if diff := cmp.Diff([]string{"lag_1", "lag_2", "lag_3"}, lags.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildLagTable(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		lags     LagSet
		wantRows []LaggedRow
	}{
		{
			name:   "drops incomplete windows",
			values: []float64{10, 11, 12, 13, 14},
			lags:   DefaultLags,
			wantRows: []LaggedRow{
				{Period: 2013, Target: 13, Lags: []float64{12, 11, 10}},
				{Period: 2014, Target: 14, Lags: []float64{13, 12, 11}},
			},
		},
		{
			name:   "single lag",
			values: []float64{1, 2, 3},
			lags:   LagSet{1},
			wantRows: []LaggedRow{
				{Period: 2011, Target: 2, Lags: []float64{1}},
				{Period: 2012, Target: 3, Lags: []float64{2}},
			},
		},
		{
			name:   "shorter than the largest lag",
			values: []float64{1, 2, 3},
			lags:   DefaultLags,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := BuildLagTable(FromValues("Kenya", 2010, tt.values), tt.lags)
			if table.Len() != len(tt.wantRows) {
				t.Fatalf("Len() = %d, want %d", table.Len(), len(tt.wantRows))
			}
			if diff := cmp.Diff(tt.wantRows, table.Rows, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWindows(t *testing.T) {
	s := FromValues("Mali", 2000, []float64{1, 2, 3, 4, 5, 6})

	raw := RawWindow(s, 1, 4)
	if diff := cmp.Diff([]float64{2, 3, 4}, raw.Target); diff != "" {
		t.Errorf("raw Target mismatch (-want +got):\n%s", diff)
	}
	if raw.Lagged() {
		t.Error("raw window reports lagged")
	}
	if math.Abs(raw.Last()-4) > 1e-12 {
		t.Errorf("Last() = %v, want 4", raw.Last())
	}

	lagged := BuildLagTable(s, LagSet{1}).Window(0, 2)
	if !lagged.Lagged() {
		t.Error("lag table window not lagged")
	}
	if diff := cmp.Diff([]int{2001, 2002}, lagged.Periods); diff != "" {
		t.Errorf("Periods mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]float64{{1}, {2}}, lagged.Features); diff != "" {
		t.Errorf("Features mismatch (-want +got):\n%s", diff)
	}

	if !RawWindow(s, 2, 2).IsEmpty() {
		t.Error("zero-width window not empty")
	}
}
