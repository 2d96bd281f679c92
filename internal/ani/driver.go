package ani

import (
	"context"
	"fmt"
	"math"

	"github.com/nistring/VitalRecoder-ANI/internal/ecg"
	"github.com/nistring/VitalRecoder-ANI/pkg/config"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
	"github.com/nistring/VitalRecoder-ANI/pkg/logger"
)

// WindowResult reports the outcome of one per-second analysis window, so
// callers can tell a computed zero apart from a failed window that was
// defaulted to the sentinel.
type WindowResult struct {
	Index int
	Score float64
	Err   error
}

// Failed reports whether the window's score is the failure sentinel.
func (r WindowResult) Failed() bool {
	return r.Err != nil
}

// Compute slides a WindowSeconds-long window one second at a time across the
// cleaned ECG and produces one index value per whole second of recording.
//
// A recording that does not exceed the window length is refused outright
// with ErrInputTooShort; no partial sequence is produced. Inside the batch,
// any per-window failure (peak detection, degenerate normalisation,
// undefined interpolation) is absorbed: the sentinel 0 is recorded for that
// second and processing continues. Window computations share no state, so a
// failed window cannot affect its neighbours.
//
// The returned sequence has exactly floor(duration) elements; any NaN left
// over from the numeric pipeline is scrubbed to 0.
func Compute(ctx context.Context, ecgClean []float64, detector ecg.Detector, cfg config.SignalConfig) ([]float32, []WindowResult, error) {
	seconds := int(math.Floor(float64(len(ecgClean)) / cfg.SampleRate))
	if seconds <= cfg.WindowSeconds {
		return nil, nil, fmt.Errorf("%w: %d s of ECG, need more than %d s",
			apperrors.ErrInputTooShort, seconds, cfg.WindowSeconds)
	}

	log := logger.WithComponent("ani-driver")
	windowLen := cfg.WindowSamples() + 1

	scores := make([]float32, 0, seconds)
	results := make([]WindowResult, 0, seconds)
	for i := 0; i < seconds; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("batch aborted at second %d: %w", i, err)
		}

		start := i * int(cfg.SampleRate)
		end := start + windowLen
		if end > len(ecgClean) {
			end = len(ecgClean)
		}

		score, err := scoreOne(ecgClean[start:end], detector, cfg)
		if err != nil {
			log.Debug("window failed, recording sentinel", "second", i, "error", err)
			results = append(results, WindowResult{Index: i, Err: err})
			scores = append(scores, 0)
			continue
		}
		results = append(results, WindowResult{Index: i, Score: score})
		scores = append(scores, float32(score))
	}

	for i, s := range scores {
		if math.IsNaN(float64(s)) {
			scores[i] = 0
		}
	}
	return scores, results, nil
}

// scoreOne runs the full single-window pipeline: peak detection, interval
// normalisation, uniform resampling, envelope extraction, area scoring.
func scoreOne(window []float64, detector ecg.Detector, cfg config.SignalConfig) (float64, error) {
	peaks, err := detector.DetectPeaks(window, cfg.SampleRate)
	if err != nil {
		return 0, fmt.Errorf("detecting peaks: %w", err)
	}
	rr, err := NormalizeRR(peaks, cfg.SampleRate)
	if err != nil {
		return 0, err
	}
	_, resampled, err := ResampleRR(peaks, rr, cfg)
	if err != nil {
		return 0, err
	}
	upper, lower, _, err := ExtractEnvelopes(resampled, cfg)
	if err != nil {
		return 0, err
	}
	return ScoreWindow(upper, lower, cfg), nil
}
