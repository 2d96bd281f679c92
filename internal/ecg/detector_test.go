package ecg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// syntheticECG builds a window of narrow gaussian QRS complexes at the given
// beat positions, over a slow baseline wander, at 100 Hz.
func syntheticECG(n int, beats []int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.1 * math.Sin(2*math.Pi*0.2*float64(i)/100)
	}
	for _, b := range beats {
		for i := b - 10; i <= b+10; i++ {
			if i < 0 || i >= n {
				continue
			}
			d := float64(i - b)
			x[i] += 1.5 * math.Exp(-d*d/8)
		}
	}
	return x
}

func TestDetectPeaksFindsBeats(t *testing.T) {
	beats := []int{100, 190, 300, 395, 510, 600, 705, 790}
	ecg := syntheticECG(900, beats)

	peaks, err := NewQRSDetector().DetectPeaks(ecg, 100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(peaks), len(beats)-1, "most beats found")

	// Every detected peak sits within 50 ms of a true beat, and they come
	// out in order.
	for i, p := range peaks {
		if i > 0 {
			assert.Greater(t, p, peaks[i-1], "peaks ordered")
		}
		closest := math.MaxInt
		for _, b := range beats {
			if d := abs(p - b); d < closest {
				closest = d
			}
		}
		assert.LessOrEqual(t, closest, 5, "peak %d at %d far from any beat", i, p)
	}
}

func TestDetectPeaksFlatLine(t *testing.T) {
	_, err := NewQRSDetector().DetectPeaks(make([]float64, 1000), 100)
	assert.ErrorIs(t, err, apperrors.ErrDegenerateSignal)
}

func TestDetectPeaksRespectsRefractory(t *testing.T) {
	// Beats 90 ms apart: the second of each pair is inside the refractory
	// window and must be dropped.
	beats := []int{100, 109, 300, 309, 500, 509, 700, 709}
	ecg := syntheticECG(900, beats)

	peaks, err := NewQRSDetector().DetectPeaks(ecg, 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(peaks), 4)
}

func TestDetectPeaksRejectsBadInput(t *testing.T) {
	_, err := NewQRSDetector().DetectPeaks(make([]float64, 50), 100)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = NewQRSDetector().DetectPeaks(make([]float64, 1000), 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
