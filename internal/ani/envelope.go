package ani

import (
	"fmt"

	"github.com/nistring/VitalRecoder-ANI/internal/dsp"
	"github.com/nistring/VitalRecoder-ANI/pkg/config"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// ExtractEnvelopes isolates the HF band of the resampled series with a
// 2nd-order zero-phase Butterworth band-pass, then builds continuous upper
// and lower envelopes by linear interpolation through the filtered series'
// local maxima and minima. Both envelopes are clamped element-wise to
// [-EnvelopeClip, +EnvelopeClip].
//
// Near-flat filtered series with fewer than two maxima or two minima leave
// the envelope undefined and yield ErrTooFewExtrema.
func ExtractEnvelopes(series []float64, cfg config.SignalConfig) (upper, lower, filtered []float64, err error) {
	b, a, err := dsp.ButterBandpass(2, cfg.HFBandLow, cfg.HFBandHigh, cfg.InterpolationRate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("designing HF band filter: %w", err)
	}
	filtered, err = dsp.FiltFilt(b, a, series)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("filtering HF band: %w", err)
	}

	t := make([]float64, len(filtered))
	for i := range t {
		t[i] = float64(i) / cfg.InterpolationRate
	}

	upper, err = envelopeThrough(dsp.LocalMaxima(filtered), filtered, t, cfg.EnvelopeClip)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("upper envelope: %w", err)
	}
	lower, err = envelopeThrough(dsp.LocalMinima(filtered), filtered, t, cfg.EnvelopeClip)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("lower envelope: %w", err)
	}
	return upper, lower, filtered, nil
}

func envelopeThrough(extrema []int, filtered, t []float64, clip float64) ([]float64, error) {
	if len(extrema) < 2 {
		return nil, fmt.Errorf("%w: %d extrema", apperrors.ErrTooFewExtrema, len(extrema))
	}
	xs := make([]float64, len(extrema))
	ys := make([]float64, len(extrema))
	for i, idx := range extrema {
		xs[i] = t[idx]
		ys[i] = filtered[idx]
	}
	env, err := dsp.Interp1(xs, ys, t)
	if err != nil {
		return nil, err
	}
	for i, v := range env {
		if v > clip {
			env[i] = clip
		} else if v < -clip {
			env[i] = -clip
		}
	}
	return env, nil
}
