// Package prep validates and cleans raw waveform channels before they reach
// the index computation. A channel is refused when it is empty or when too
// large a fraction of its samples is missing; otherwise gaps and
// out-of-range samples are zeroed or clamped and a cleaned copy is produced.
package prep

import (
	"fmt"
	"math"

	"github.com/nistring/VitalRecoder-ANI/pkg/config"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// ECG gates and cleans a raw ECG channel. Gated is the raw signal with NaN
// and out-of-bounds samples zeroed; clean additionally has baseline wander
// removed by subtracting a centred one-second moving average.
func ECG(raw []float64, cfg config.GateConfig, sampleRate float64) (gated, clean []float64, err error) {
	gated, err = gate(raw, cfg)
	if err != nil {
		return nil, nil, err
	}
	for i, v := range gated {
		if v >= cfg.MaxAmplitude || v <= cfg.MinAmplitude {
			gated[i] = 0
		}
	}
	clean = detrend(gated, int(sampleRate))
	return gated, clean, nil
}

// PPG gates and cleans a raw plethysmograph channel. Unlike ECG, samples
// outside the amplitude bounds are clamped rather than zeroed, and no
// further filtering is applied.
func PPG(raw []float64, cfg config.GateConfig) (gated, clean []float64, err error) {
	gated, err = gate(raw, cfg)
	if err != nil {
		return nil, nil, err
	}
	clean = make([]float64, len(gated))
	for i, v := range gated {
		switch {
		case v < cfg.MinAmplitude:
			clean[i] = cfg.MinAmplitude
		case v > cfg.MaxAmplitude:
			clean[i] = cfg.MaxAmplitude
		default:
			clean[i] = v
		}
	}
	return gated, clean, nil
}

// gate rejects empty or gap-ridden channels and zeroes remaining NaN
// samples in a copy of the input.
func gate(raw []float64, cfg config.GateConfig) ([]float64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNoSamples, cfg.Track)
	}
	nanCount := 0
	for _, v := range raw {
		if math.IsNaN(v) {
			nanCount++
		}
	}
	if float64(nanCount) > float64(len(raw))*cfg.NaNThreshold {
		return nil, fmt.Errorf("%w: %s has %d/%d missing samples (%.2f%%)",
			apperrors.ErrTooManyGaps, cfg.Track, nanCount, len(raw),
			100*float64(nanCount)/float64(len(raw)))
	}

	out := make([]float64, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) {
			out[i] = 0
		} else {
			out[i] = v
		}
	}
	return out, nil
}

// detrend subtracts a centred moving average spanning window samples,
// removing baseline wander below roughly sampleRate/window Hz.
func detrend(x []float64, window int) []float64 {
	if window < 3 {
		window = 3
	}
	half := window / 2
	prefix := make([]float64, len(x)+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}
	out := make([]float64, len(x))
	for i := range x {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(x)-1 {
			hi = len(x) - 1
		}
		mean := (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
		out[i] = x[i] - mean
	}
	return out
}
