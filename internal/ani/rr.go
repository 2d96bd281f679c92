// Package ani computes the Analgesia Nociception Index from ECG R-peak
// timing. The pipeline for one 64-second window is: R-R interval
// normalisation, uniform resampling onto a 4 Hz grid, HF-band (0.15-0.4 Hz)
// zero-phase filtering, local-extrema envelope construction, and clipped
// trapezoidal-area scoring. The batch driver slides that window one second
// at a time over a whole recording.
package ani

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// NormalizeRR converts strictly increasing R-peak sample indices into an
// R-R interval sequence in seconds, then normalises it in place to zero mean
// and unit L2 norm. The result has one fewer element than peaks.
//
// A window whose intervals are all identical has zero norm after mean
// subtraction; that is reported as ErrDegenerateSignal instead of letting
// NaN propagate silently.
func NormalizeRR(peaks []int, sampleRate float64) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %g", apperrors.ErrInvalidInput, sampleRate)
	}
	if len(peaks) < 2 {
		return nil, fmt.Errorf("%w: %d peaks", apperrors.ErrTooFewPeaks, len(peaks))
	}

	intervals := make([]float64, len(peaks)-1)
	for i := range intervals {
		d := peaks[i+1] - peaks[i]
		if d <= 0 {
			return nil, fmt.Errorf("%w: peak indices not strictly increasing at %d", apperrors.ErrInvalidInput, i)
		}
		intervals[i] = float64(d) / sampleRate
	}

	mean := floats.Sum(intervals) / float64(len(intervals))
	floats.AddConst(-mean, intervals)

	norm := floats.Norm(intervals, 2)
	if norm == 0 {
		return nil, fmt.Errorf("%w: zero-variance R-R intervals", apperrors.ErrDegenerateSignal)
	}
	floats.Scale(1/norm, intervals)
	return intervals, nil
}
