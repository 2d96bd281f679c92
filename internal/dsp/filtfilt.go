package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Filter applies the IIR filter (b, a) to x in a single forward pass using
// the direct form II transposed structure. zi is the initial delay-line
// state (length max(len(a), len(b)) - 1) and may be nil for zero state.
func Filter(b, a, x, zi []float64) []float64 {
	n := len(b)
	if len(a) > n {
		n = len(a)
	}
	bb := make([]float64, n)
	copy(bb, b)
	aa := make([]float64, n)
	copy(aa, a)

	z := make([]float64, n-1)
	copy(z, zi)

	y := make([]float64, len(x))
	for i, xi := range x {
		yi := bb[0]*xi + z[0]
		for j := 0; j < n-2; j++ {
			z[j] = bb[j+1]*xi + z[j+1] - aa[j+1]*yi
		}
		z[n-2] = bb[n-1]*xi - aa[n-1]*yi
		y[i] = yi
	}
	return y
}

// steadyState computes the delay-line state that makes the filter's step
// response start at its final value, so padded edges settle immediately.
// It solves (I - A^T) zi = B with A the companion matrix of a.
func steadyState(b, a []float64) ([]float64, error) {
	n := len(b)
	if len(a) > n {
		n = len(a)
	}
	bb := make([]float64, n)
	copy(bb, b)
	aa := make([]float64, n)
	copy(aa, a)

	// companion(a) has first row -a[1:]/a[0] and ones on the subdiagonal;
	// its transpose has first column -a[1:] and ones on the superdiagonal.
	m := n - 1
	sys := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			var aT float64
			if j == 0 {
				aT = -aa[i+1]
			}
			if j == i+1 {
				aT += 1
			}
			v := -aT
			if i == j {
				v += 1
			}
			sys.Set(i, j, v)
		}
	}

	rhs := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		rhs.SetVec(i, bb[i+1]-aa[i+1]*bb[0])
	}

	var zi mat.VecDense
	if err := zi.SolveVec(sys, rhs); err != nil {
		return nil, fmt.Errorf("solving steady-state filter conditions: %w", err)
	}
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		out[i] = zi.AtVec(i)
	}
	return out, nil
}

// FiltFilt applies the filter forward and backward so the result has zero
// phase distortion. The signal is extended at both ends by odd reflection
// (3x the coefficient count) to suppress edge transients, matching the
// forward-backward filtering convention used by scientific DSP packages.
func FiltFilt(b, a, x []float64) ([]float64, error) {
	n := len(b)
	if len(a) > n {
		n = len(a)
	}
	padLen := 3 * n
	if len(x) <= padLen {
		return nil, fmt.Errorf("input length %d must exceed padding %d", len(x), padLen)
	}

	ext := make([]float64, 0, len(x)+2*padLen)
	for j := 0; j < padLen; j++ {
		ext = append(ext, 2*x[0]-x[padLen-j])
	}
	ext = append(ext, x...)
	last := len(x) - 1
	for j := 0; j < padLen; j++ {
		ext = append(ext, 2*x[last]-x[last-1-j])
	}

	zi, err := steadyState(b, a)
	if err != nil {
		return nil, err
	}

	scaled := make([]float64, len(zi))
	for i := range zi {
		scaled[i] = zi[i] * ext[0]
	}
	y := Filter(b, a, ext, scaled)

	reverse(y)
	for i := range zi {
		scaled[i] = zi[i] * y[0]
	}
	y = Filter(b, a, y, scaled)
	reverse(y)

	out := make([]float64, len(x))
	copy(out, y[padLen:padLen+len(x)])
	return out, nil
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
