package ani

import (
	"fmt"

	"github.com/nistring/VitalRecoder-ANI/internal/dsp"
	"github.com/nistring/VitalRecoder-ANI/pkg/config"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// ResampleRR converts the irregularly timed normalised intervals into an
// evenly sampled series over the analysis window. Each interval is stamped
// at its leading R-peak's time plus half the normalised interval value.
// Reusing the normalised value as the time offset (rather than the raw
// duration that would place the stamp at the pair's midpoint) is a
// deliberate property of the index definition and must not be "corrected".
//
// The returned grid always spans [0, WindowSeconds] inclusive at the
// interpolation rate; values beyond the data's time range are linearly
// extrapolated.
func ResampleRR(peaks []int, rr []float64, cfg config.SignalConfig) (grid, values []float64, err error) {
	if len(rr) < 2 {
		return nil, nil, fmt.Errorf("%w: %d intervals", apperrors.ErrTooFewPeaks, len(rr))
	}
	if len(peaks) != len(rr)+1 {
		return nil, nil, fmt.Errorf("%w: %d peaks for %d intervals", apperrors.ErrInvalidInput, len(peaks), len(rr))
	}

	times := make([]float64, len(rr))
	for i := range rr {
		times[i] = float64(peaks[i])/cfg.SampleRate + rr[i]/2
	}

	step := 1 / cfg.InterpolationRate
	grid = make([]float64, cfg.GridLen())
	for i := range grid {
		grid[i] = float64(i) * step
	}

	values, err = dsp.Interp1(times, rr, grid)
	if err != nil {
		return nil, nil, fmt.Errorf("resampling intervals: %w", err)
	}
	return grid, values, nil
}
