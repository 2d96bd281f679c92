package vital

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

func TestDuration(t *testing.T) {
	rec := sampleRecording()
	// ECG track ends at 5 + 2/100 s; ANI track at 64 + 3/1 s.
	assert.InDelta(t, 67, rec.Duration(), 1e-9)

	empty := &Recording{}
	assert.Equal(t, 0.0, empty.Duration())
}

func TestTrackLookupAndRemove(t *testing.T) {
	rec := sampleRecording()

	tr, ok := rec.Track("Intellivue/ECG_II")
	require.True(t, ok)
	assert.Equal(t, "mV", tr.Unit)

	_, ok = rec.Track("nonexistent")
	assert.False(t, ok)

	assert.True(t, rec.RemoveTrack("Intellivue/ECG_II"))
	assert.False(t, rec.RemoveTrack("Intellivue/ECG_II"))
	assert.Len(t, rec.Tracks, 1)
}

func TestToSamplesFillsGapsWithNaN(t *testing.T) {
	rec := &Recording{Tracks: []*Track{{
		Name: "wave",
		Rate: 2,
		Records: []Record{
			{Offset: 0, Values: []float32{1, 2}},
			{Offset: 2, Values: []float32{3, 4}},
		},
	}}}

	out, err := rec.ToSamples("wave", 2)
	require.NoError(t, err)
	require.Len(t, out, 6)

	assert.Equal(t, 1.0, out[0])
	assert.Equal(t, 2.0, out[1])
	assert.True(t, math.IsNaN(out[2]), "gap second not covered by any record")
	assert.True(t, math.IsNaN(out[3]))
	assert.Equal(t, 3.0, out[4])
	assert.Equal(t, 4.0, out[5])
}

func TestToSamplesIgnoresSiblingTracks(t *testing.T) {
	// A derived track anchored far past the waveform must not stretch the
	// waveform's dense view with trailing NaN.
	rec := &Recording{Tracks: []*Track{
		{
			Name:    "wave",
			Rate:    2,
			Records: []Record{{Offset: 0, Values: []float32{1, 2, 3, 4}}},
		},
		{
			Name:    "index",
			Rate:    1,
			Records: []Record{{Offset: 64, Values: []float32{55, 60}}},
		},
	}}

	out, err := rec.ToSamples("wave", 2)
	require.NoError(t, err)
	assert.Len(t, out, 4)

	idx, err := rec.ToSamples("index", 1)
	require.NoError(t, err)
	assert.Len(t, idx, 66)
}

func TestToSamplesErrors(t *testing.T) {
	rec := &Recording{Tracks: []*Track{{Name: "wave", Rate: 2}}}

	_, err := rec.ToSamples("missing", 2)
	assert.ErrorIs(t, err, apperrors.ErrTrackMissing)

	_, err = rec.ToSamples("wave", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestChunkSamples(t *testing.T) {
	data := make([]float64, 250)
	for i := range data {
		data[i] = float64(i)
	}
	recs := ChunkSamples(data, 100)
	require.Len(t, recs, 3)

	assert.Equal(t, 0.0, recs[0].Offset)
	assert.Equal(t, 1.0, recs[1].Offset)
	assert.Equal(t, 2.0, recs[2].Offset)
	assert.Len(t, recs[0].Values, 100)
	assert.Len(t, recs[2].Values, 50)
	assert.Equal(t, float32(100), recs[1].Values[0])
	assert.Equal(t, float32(249), recs[2].Values[49])
}
