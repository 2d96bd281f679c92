package dsp

import (
	"fmt"
	"sort"
)

// Interp1 evaluates the piecewise-linear function through the points
// (xs, ys) at every query point in xq. Outside the data range the first or
// last segment is extended linearly, so no query produces a bounds error.
// The knots need not arrive sorted; they are ordered by x before use.
// At least two knots are required, and duplicate x values are rejected
// because the slope between them is undefined.
func Interp1(xs, ys, xq []float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("knot lengths differ: %d vs %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("need at least 2 knots, got %d", len(xs))
	}

	x := make([]float64, len(xs))
	copy(x, xs)
	y := make([]float64, len(ys))
	copy(y, ys)
	sort.Sort(&byKnot{x, y})

	for i := 1; i < len(x); i++ {
		if x[i] == x[i-1] {
			return nil, fmt.Errorf("duplicate knot at x=%g", x[i])
		}
	}

	out := make([]float64, len(xq))
	for i, q := range xq {
		// Segment index: the knot interval containing q, clamped so that
		// queries beyond the ends ride the outermost segment's slope.
		j := sort.SearchFloat64s(x, q)
		if j > 0 {
			j--
		}
		if j > len(x)-2 {
			j = len(x) - 2
		}
		t := (q - x[j]) / (x[j+1] - x[j])
		out[i] = y[j] + t*(y[j+1]-y[j])
	}
	return out, nil
}

type byKnot struct {
	x, y []float64
}

func (s *byKnot) Len() int           { return len(s.x) }
func (s *byKnot) Less(i, j int) bool { return s.x[i] < s.x[j] }
func (s *byKnot) Swap(i, j int) {
	s.x[i], s.x[j] = s.x[j], s.x[i]
	s.y[i], s.y[j] = s.y[j], s.y[i]
}
