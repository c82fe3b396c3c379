// Package curve - Piecewise-linear rating curves
// A Table is a sampled monotonic calibration curve; Interpolate evaluates it
// between breakpoints. The curve carries no knowledge of what it rates.
package curve

import (
	"fmt"
	"math"
	"sort"

	"premium-rater/internal/errors"
)

// Point is one calibration breakpoint
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Table is an immutable breakpoint table with strictly ascending X
type Table struct {
	xs []float64
	ys []float64
}

// NewTable builds a table from parallel X and Y slices.
// The slices are copied; later changes by the caller do not affect the table.
func NewTable(xs, ys []float64) (*Table, error) {
	if len(xs) != len(ys) {
		return nil, errors.InvalidTable("breakpoint table has %d x values but %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, errors.InvalidTable("breakpoint table needs at least 2 points, got %d", len(xs))
	}

	for i := range xs {
		if !finite(xs[i]) || !finite(ys[i]) {
			return nil, errors.InvalidTable("breakpoint %d is not finite: (%v, %v)", i, xs[i], ys[i]).
				WithContext("index", i)
		}
		if i > 0 && xs[i] <= xs[i-1] {
			return nil, errors.InvalidTable("breakpoint x values must be strictly ascending: x[%d]=%v follows x[%d]=%v",
				i, xs[i], i-1, xs[i-1]).WithContext("index", i)
		}
	}

	t := &Table{
		xs: make([]float64, len(xs)),
		ys: make([]float64, len(ys)),
	}
	copy(t.xs, xs)
	copy(t.ys, ys)
	return t, nil
}

// FromPoints builds a table from (x, y) pairs
func FromPoints(points []Point) (*Table, error) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	return NewTable(xs, ys)
}

// MustTable is NewTable for calibration compiled into the binary
func MustTable(xs, ys []float64) *Table {
	t, err := NewTable(xs, ys)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// Len returns the number of breakpoints
func (t *Table) Len() int {
	return len(t.xs)
}

// Min returns the first breakpoint's X
func (t *Table) Min() float64 {
	return t.xs[0]
}

// Max returns the last breakpoint's X
func (t *Table) Max() float64 {
	return t.xs[len(t.xs)-1]
}

// Points returns a copy of the breakpoints
func (t *Table) Points() []Point {
	points := make([]Point, len(t.xs))
	for i := range t.xs {
		points[i] = Point{X: t.xs[i], Y: t.ys[i]}
	}
	return points
}

// At evaluates the curve at q. See Interpolate.
func (t *Table) At(q float64) float64 {
	return Interpolate(q, t)
}

// NonDecreasing reports whether Y never falls as X grows
func (t *Table) NonDecreasing() bool {
	for i := 1; i < len(t.ys); i++ {
		if t.ys[i] < t.ys[i-1] {
			return false
		}
	}
	return true
}

// Interpolate evaluates the piecewise-linear curve through table at q.
//
// q must not exceed the last breakpoint; callers validate their inputs
// against the table domain before rating, and a query above it panics.
// Below the first breakpoint the first segment's slope is extended.
// No rounding is applied.
func Interpolate(q float64, table *Table) float64 {
	n := len(table.xs)
	if q == table.xs[n-1] {
		return table.ys[n-1]
	}

	// greatest index with x <= q
	low := sort.Search(n, func(i int) bool { return table.xs[i] > q }) - 1
	if low >= n-1 {
		panic(fmt.Sprintf("curve: query %v is outside the table domain [%v, %v]", q, table.xs[0], table.xs[n-1]))
	}
	if low < 0 {
		low = 0
	}
	high := low + 1

	xLow, xHigh := table.xs[low], table.xs[high]
	yLow, yHigh := table.ys[low], table.ys[high]
	return yLow + (q-xLow)/(xHigh-xLow)*(yHigh-yLow)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
