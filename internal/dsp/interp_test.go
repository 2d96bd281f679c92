package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterp1Exact(t *testing.T) {
	xs := []float64{0, 1, 2}
	ys := []float64{0, 10, 0}
	out, err := Interp1(xs, ys, []float64{0, 0.5, 1, 1.25, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 10, 7.5, 0}, out)
}

func TestInterp1Extrapolates(t *testing.T) {
	xs := []float64{1, 2}
	ys := []float64{3, 5}
	out, err := Interp1(xs, ys, []float64{0, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1, out[0], 1e-12)
	assert.InDelta(t, 7, out[1], 1e-12)
}

func TestInterp1SortsKnots(t *testing.T) {
	out, err := Interp1([]float64{2, 0, 1}, []float64{4, 0, 2}, []float64{0.5, 1.5})
	require.NoError(t, err)
	assert.InDelta(t, 1, out[0], 1e-12)
	assert.InDelta(t, 3, out[1], 1e-12)
}

func TestInterp1Rejects(t *testing.T) {
	_, err := Interp1([]float64{0, 0, 1}, []float64{1, 2, 3}, []float64{0.5})
	assert.Error(t, err)

	_, err = Interp1([]float64{0}, []float64{1}, []float64{0})
	assert.Error(t, err)

	_, err = Interp1([]float64{0, 1}, []float64{1}, []float64{0})
	assert.Error(t, err)
}

func TestLocalMaximaPlateau(t *testing.T) {
	got := LocalMaxima([]float64{0, 1, 0, 2, 2, 2, 0})
	assert.Equal(t, []int{1, 4}, got)
}

func TestLocalMaximaEndpoints(t *testing.T) {
	// Rising or falling edges at the boundary never count.
	assert.Empty(t, LocalMaxima([]float64{0, 1, 2, 3}))
	assert.Empty(t, LocalMaxima([]float64{3, 2, 1, 0}))
	assert.Empty(t, LocalMaxima([]float64{1, 1}))
}

func TestLocalMinimaMirrors(t *testing.T) {
	x := []float64{3, 1, 3, 0, 0, 3}
	assert.Equal(t, []int{1, 3}, LocalMinima(x))
	assert.Equal(t, []int{2}, LocalMaxima(x))
}
