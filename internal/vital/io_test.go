package vital

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecording() *Recording {
	return &Recording{
		Start: time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC),
		Tracks: []*Track{
			{
				Name:    "Intellivue/ECG_II",
				Unit:    "mV",
				Rate:    100,
				MinDisp: -1,
				MaxDisp: 3,
				Color:   0xff0000,
				Records: []Record{
					{Offset: 0, Values: []float32{0.1, 0.2, 0.3}},
					{Offset: 5, Values: []float32{-0.5, 1.25}},
				},
			},
			{
				Name: "ANIMonitor2/custom_ANI",
				Rate: 1,
				Records: []Record{
					{Offset: 64, Values: []float32{55, 60, 58}},
				},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	want := sampleRecording()

	var buf bytes.Buffer
	require.NoError(t, want.Write(&buf))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, want.Start, got.Start)
	require.Len(t, got.Tracks, 2)
	assert.Equal(t, want.Tracks[0], got.Tracks[0])
	assert.Equal(t, want.Tracks[1], got.Tracks[1])
}

func TestSaveAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case01.vpr")
	want := sampleRecording()
	require.NoError(t, want.Save(path))

	got, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, want.Tracks, got.Tracks)
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("EDF0rest-of-garbage")))
	assert.ErrorContains(t, err, "bad magic")
}

func TestReadRejectsTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleRecording().Write(&buf))
	full := buf.Bytes()

	// Any prefix short of the full file must error, never panic.
	for _, n := range []int{0, 3, 4, 6, 14, 18, 40, len(full) - 1} {
		_, err := Read(bytes.NewReader(full[:n]))
		assert.Error(t, err, "prefix of %d bytes", n)
	}
}

func TestReadRejectsWrongVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleRecording().Write(&buf))
	data := buf.Bytes()
	data[4] = 99

	_, err := Read(bytes.NewReader(data))
	assert.ErrorContains(t, err, "unsupported format version")
}
