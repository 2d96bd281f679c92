package spi

import (
	"context"
	"fmt"
	"math"

	"github.com/nistring/VitalRecoder-ANI/internal/dsp"
	"github.com/nistring/VitalRecoder-ANI/internal/vital"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

func init() {
	Register(&plethFilter{})
}

// plethFilter is the built-in SPI implementation. Per detected pulse it
// measures the heartbeat interval (HBI) and the pulse wave amplitude (PPGA),
// normalises both over the recording, and combines them with the standard
// weighting SPI = 100 - 100*(0.33*HBI + 0.67*PPGA).
type plethFilter struct{}

func (f *plethFilter) Name() string { return "pleth_spi" }

const (
	spiTrackName   = "SPI"
	plethTrackName = "PLETH"

	hbiWeight  = 0.33
	ppgaWeight = 0.67

	pulseRefractory = 0.3 // seconds between pulses
)

type beat struct {
	at        float64 // seconds from recording start
	interval  float64
	amplitude float64
}

func (f *plethFilter) Run(ctx context.Context, rec *vital.Recording, sampleRate float64) error {
	ppg, err := rec.ToSamples(plethTrackName, sampleRate)
	if err != nil {
		return err
	}
	if len(ppg) == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrNoSamples, plethTrackName)
	}
	for i, v := range ppg {
		if math.IsNaN(v) {
			ppg[i] = 0
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	beats, err := detectPulses(ppg, sampleRate)
	if err != nil {
		return err
	}

	series := beatsToSeries(beats, int(math.Floor(float64(len(ppg))/sampleRate)))

	rec.RemoveTrack(spiTrackName)
	rec.AddTrack(&vital.Track{
		Name:    spiTrackName,
		Rate:    1,
		MinDisp: 0,
		MaxDisp: 100,
		Records: []vital.Record{{Offset: 0, Values: series}},
	})
	return nil
}

// detectPulses finds pulse peaks on the band-limited pleth wave and derives
// one beat measurement per peak pair.
func detectPulses(ppg []float64, sampleRate float64) ([]beat, error) {
	b, a, err := dsp.ButterBandpass(2, 0.5, 8, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("designing pulse band filter: %w", err)
	}
	wave, err := dsp.FiltFilt(b, a, ppg)
	if err != nil {
		return nil, fmt.Errorf("filtering pulse band: %w", err)
	}

	peakMax := 0.0
	for _, v := range wave {
		if v > peakMax {
			peakMax = v
		}
	}
	if peakMax == 0 {
		return nil, fmt.Errorf("%w: no pulse energy", apperrors.ErrDegenerateSignal)
	}
	threshold := 0.2 * peakMax
	refractory := int(pulseRefractory * sampleRate)

	var peaks []int
	last := -refractory
	for _, idx := range dsp.LocalMaxima(wave) {
		if wave[idx] < threshold || idx-last < refractory {
			continue
		}
		peaks = append(peaks, idx)
		last = idx
	}
	if len(peaks) < 2 {
		return nil, fmt.Errorf("%w: %d pulses detected", apperrors.ErrTooFewPeaks, len(peaks))
	}

	beats := make([]beat, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		// Trough between consecutive peaks gives the pulse amplitude.
		trough := wave[peaks[i-1]]
		for j := peaks[i-1]; j <= peaks[i]; j++ {
			if wave[j] < trough {
				trough = wave[j]
			}
		}
		beats = append(beats, beat{
			at:        float64(peaks[i]) / sampleRate,
			interval:  float64(peaks[i]-peaks[i-1]) / sampleRate,
			amplitude: wave[peaks[i]] - trough,
		})
	}
	return beats, nil
}

// beatsToSeries renders per-beat measurements as a 1 Hz series. Seconds
// before the first beat hold NaN; later post-processing bridges the gaps.
func beatsToSeries(beats []beat, seconds int) []float32 {
	minHBI, maxHBI := math.Inf(1), math.Inf(-1)
	minAmp, maxAmp := math.Inf(1), math.Inf(-1)
	for _, bt := range beats {
		minHBI = math.Min(minHBI, bt.interval)
		maxHBI = math.Max(maxHBI, bt.interval)
		minAmp = math.Min(minAmp, bt.amplitude)
		maxAmp = math.Max(maxAmp, bt.amplitude)
	}
	norm := func(v, lo, hi float64) float64 {
		if hi == lo {
			return 0.5
		}
		return (v - lo) / (hi - lo)
	}

	series := make([]float32, seconds)
	for i := range series {
		series[i] = float32(math.NaN())
	}
	for _, bt := range beats {
		sec := int(bt.at)
		if sec < 0 || sec >= seconds {
			continue
		}
		score := 100 - 100*(hbiWeight*norm(bt.interval, minHBI, maxHBI)+
			ppgaWeight*norm(bt.amplitude, minAmp, maxAmp))
		series[sec] = float32(score)
	}
	// Carry the latest value across beat-free seconds inside the record.
	lastValid := float32(math.NaN())
	for i, v := range series {
		if math.IsNaN(float64(v)) {
			series[i] = lastValid
		} else {
			lastValid = v
		}
	}
	return series
}
