// Package dsp implements the signal-processing primitives behind the index
// computation: Butterworth band-pass design, zero-phase filtering, linear
// interpolation with extrapolation, and local-extrema detection.
//
// The filters operate on whole finite windows, not streams. Coefficients are
// returned in transfer-function form (b, a) with a[0] normalised to 1.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// ButterBandpass designs a digital Butterworth band-pass filter of the given
// order. lowCut and highCut are corner frequencies in Hz and fs is the
// sampling rate in Hz. The design follows the classic analog-prototype route:
// prototype poles, low-pass to band-pass transform, then bilinear transform
// with frequency pre-warping.
//
// The returned b and a each have 2*order+1 coefficients.
func ButterBandpass(order int, lowCut, highCut, fs float64) (b, a []float64, err error) {
	if order < 1 {
		return nil, nil, fmt.Errorf("filter order must be >= 1, got %d", order)
	}
	nyquist := fs / 2
	wnLow := lowCut / nyquist
	wnHigh := highCut / nyquist
	if wnLow <= 0 || wnHigh >= 1 || wnHigh <= wnLow {
		return nil, nil, fmt.Errorf("band [%g, %g] Hz invalid for fs %g Hz", lowCut, highCut, fs)
	}

	// Analog Butterworth prototype: poles evenly spaced on the left half of
	// the unit circle, no zeros, unit gain.
	poles := make([]complex128, order)
	for k := 0; k < order; k++ {
		theta := math.Pi * float64(2*k+1-order) / float64(2*order)
		poles[k] = -cmplx.Exp(complex(0, theta))
	}
	gain := 1.0

	// Pre-warp the corner frequencies for the bilinear transform.
	const designFs = 2.0
	warpedLow := 2 * designFs * math.Tan(math.Pi*wnLow/designFs)
	warpedHigh := 2 * designFs * math.Tan(math.Pi*wnHigh/designFs)
	bw := warpedHigh - warpedLow
	wo := math.Sqrt(warpedLow * warpedHigh)

	// Low-pass prototype to band-pass: each pole splits in two, and order
	// zeros appear at the origin.
	bpPoles := make([]complex128, 0, 2*order)
	for _, p := range poles {
		scaled := p * complex(bw/2, 0)
		d := cmplx.Sqrt(scaled*scaled - complex(wo*wo, 0))
		bpPoles = append(bpPoles, scaled+d, scaled-d)
	}
	bpZeros := make([]complex128, order) // all at s = 0
	gain *= math.Pow(bw, float64(order))

	// Bilinear transform s -> z with the same pre-warp rate.
	fs2 := complex(2*designFs, 0)
	zZeros := make([]complex128, 0, 2*order)
	numProd := complex(1, 0)
	denProd := complex(1, 0)
	for _, z := range bpZeros {
		zZeros = append(zZeros, (fs2+z)/(fs2-z))
		numProd *= fs2 - z
	}
	zPoles := make([]complex128, 0, 2*order)
	for _, p := range bpPoles {
		zPoles = append(zPoles, (fs2+p)/(fs2-p))
		denProd *= fs2 - p
	}
	// Zeros at infinity map to z = -1.
	for len(zZeros) < len(zPoles) {
		zZeros = append(zZeros, complex(-1, 0))
	}
	digitalGain := gain * real(numProd/denProd)

	b = polyFromRoots(zZeros)
	a = polyFromRoots(zPoles)
	for i := range b {
		b[i] *= digitalGain
	}
	// a[0] is 1 up to rounding; normalise so downstream code can rely on it.
	a0 := a[0]
	for i := range a {
		a[i] /= a0
	}
	for i := range b {
		b[i] /= a0
	}
	return b, a, nil
}

// polyFromRoots expands prod(x - r_i) into real polynomial coefficients,
// highest degree first. Complex roots must come in conjugate pairs.
func polyFromRoots(roots []complex128) []float64 {
	coeffs := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(coeffs)+1)
		for i, c := range coeffs {
			next[i] += c
			next[i+1] -= c * r
		}
		coeffs = next
	}
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = real(c)
	}
	return out
}
