// Package ecg provides R-peak detection on ECG sample windows. The batch
// driver consumes detectors through the Detector interface so the default
// implementation can be swapped for a vendor one.
package ecg

import (
	"fmt"
	"math"

	"github.com/nistring/VitalRecoder-ANI/internal/dsp"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// Detector locates R peaks in an ECG window. Implementations return ordered
// sample indices into the window and may fail on pathological input; such
// failures surface as errors the batch driver absorbs per window.
type Detector interface {
	DetectPeaks(window []float64, sampleRate float64) ([]int, error)
}

// QRSDetector is the default Detector: band-pass to the QRS band,
// differentiate, square, integrate over a moving window, then pick peaks
// with an adaptive threshold and a refractory period.
type QRSDetector struct {
	// BandLow and BandHigh bound the QRS energy band in Hz.
	BandLow  float64
	BandHigh float64
	// Refractory is the minimum beat spacing in seconds.
	Refractory float64
	// IntegrationWindow is the moving-integration span in seconds.
	IntegrationWindow float64
}

// NewQRSDetector returns a detector with the standard QRS constants.
func NewQRSDetector() *QRSDetector {
	return &QRSDetector{
		BandLow:           5,
		BandHigh:          15,
		Refractory:        0.2,
		IntegrationWindow: 0.15,
	}
}

// DetectPeaks implements Detector.
func (d *QRSDetector) DetectPeaks(window []float64, sampleRate float64) ([]int, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %g", apperrors.ErrInvalidInput, sampleRate)
	}
	if len(window) < int(sampleRate) {
		return nil, fmt.Errorf("%w: window of %d samples shorter than one second", apperrors.ErrInvalidInput, len(window))
	}

	b, a, err := dsp.ButterBandpass(2, d.BandLow, d.BandHigh, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("designing QRS band filter: %w", err)
	}
	filtered, err := dsp.FiltFilt(b, a, window)
	if err != nil {
		return nil, fmt.Errorf("filtering QRS band: %w", err)
	}

	// Derivative emphasises slope, squaring rectifies and sharpens.
	energy := make([]float64, len(filtered))
	for i := 1; i < len(filtered); i++ {
		dv := filtered[i] - filtered[i-1]
		energy[i] = dv * dv
	}

	integrated := movingSum(energy, int(d.IntegrationWindow*sampleRate))

	peak := 0.0
	for _, v := range integrated {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return nil, fmt.Errorf("%w: no QRS energy in window", apperrors.ErrDegenerateSignal)
	}

	threshold := 0.25 * peak
	refractory := int(d.Refractory * sampleRate)
	var peaks []int
	lastPeak := -refractory
	for _, idx := range dsp.LocalMaxima(integrated) {
		if integrated[idx] < threshold || idx-lastPeak < refractory {
			continue
		}
		r := refineToR(filtered, idx, int(0.1*sampleRate))
		if len(peaks) > 0 && r <= peaks[len(peaks)-1] {
			continue
		}
		peaks = append(peaks, r)
		lastPeak = idx
	}
	if len(peaks) < 2 {
		return nil, fmt.Errorf("%w: %d peaks detected", apperrors.ErrTooFewPeaks, len(peaks))
	}
	return peaks, nil
}

// refineToR snaps an integrated-energy peak back to the sample with the
// largest absolute filtered amplitude within +-radius, which is where the R
// wave actually sits.
func refineToR(filtered []float64, idx, radius int) int {
	lo := idx - radius
	if lo < 0 {
		lo = 0
	}
	hi := idx + radius
	if hi > len(filtered)-1 {
		hi = len(filtered) - 1
	}
	best := lo
	bestVal := math.Abs(filtered[lo])
	for i := lo + 1; i <= hi; i++ {
		if v := math.Abs(filtered[i]); v > bestVal {
			best = i
			bestVal = v
		}
	}
	return best
}

func movingSum(x []float64, span int) []float64 {
	if span < 1 {
		span = 1
	}
	out := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		sum += v
		if i >= span {
			sum -= x[i-span]
		}
		out[i] = sum
	}
	return out
}
