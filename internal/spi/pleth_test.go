package spi

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nistring/VitalRecoder-ANI/internal/vital"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// pulseRecording builds a recording with a synthetic 1.25 Hz pleth wave whose
// amplitude grows over time, at 100 Hz.
func pulseRecording(seconds int) *vital.Recording {
	n := seconds * 100
	samples := make([]float64, n)
	for i := range samples {
		ts := float64(i) / 100
		amp := 10 + 5*ts/float64(seconds)
		samples[i] = 50 + amp*math.Sin(2*math.Pi*1.25*ts)
	}
	return &vital.Recording{Tracks: []*vital.Track{{
		Name:    "PLETH",
		Rate:    100,
		Records: vital.ChunkSamples(samples, 100),
	}}}
}

func TestLookupBuiltIn(t *testing.T) {
	f, err := Lookup("pleth_spi")
	require.NoError(t, err)
	assert.Equal(t, "pleth_spi", f.Name())

	_, err = Lookup("vendor_x")
	assert.ErrorIs(t, err, apperrors.ErrFilterUnavailable)
}

func TestPlethFilterAttachesTrack(t *testing.T) {
	f, err := Lookup("pleth_spi")
	require.NoError(t, err)

	rec := pulseRecording(30)
	require.NoError(t, f.Run(context.Background(), rec, 100))

	track, ok := rec.Track("SPI")
	require.True(t, ok, "SPI track attached")
	assert.Equal(t, 1.0, track.Rate)
	require.Len(t, track.Records, 1)
	series := track.Records[0].Values
	require.Len(t, series, 30)

	// After the first beats land, every second carries a value in [0, 100].
	for i := 2; i < len(series); i++ {
		v := float64(series[i])
		require.False(t, math.IsNaN(v), "second %d", i)
		assert.GreaterOrEqual(t, v, 0.0, "second %d", i)
		assert.LessOrEqual(t, v, 100.0, "second %d", i)
	}
}

func TestPlethFilterReplacesExistingTrack(t *testing.T) {
	f, err := Lookup("pleth_spi")
	require.NoError(t, err)

	rec := pulseRecording(30)
	rec.AddTrack(&vital.Track{Name: "SPI", Rate: 1})
	require.NoError(t, f.Run(context.Background(), rec, 100))

	count := 0
	for _, tr := range rec.Tracks {
		if tr.Name == "SPI" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPlethFilterMissingTrack(t *testing.T) {
	f, err := Lookup("pleth_spi")
	require.NoError(t, err)

	err = f.Run(context.Background(), &vital.Recording{}, 100)
	assert.ErrorIs(t, err, apperrors.ErrTrackMissing)
}

func TestPlethFilterFlatSignal(t *testing.T) {
	f, err := Lookup("pleth_spi")
	require.NoError(t, err)

	samples := make([]float64, 3000)
	rec := &vital.Recording{Tracks: []*vital.Track{{
		Name:    "PLETH",
		Rate:    100,
		Records: vital.ChunkSamples(samples, 100),
	}}}
	err = f.Run(context.Background(), rec, 100)
	assert.ErrorIs(t, err, apperrors.ErrDegenerateSignal)
}
