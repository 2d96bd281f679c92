package processor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nistring/VitalRecoder-ANI/internal/spi"
	"github.com/nistring/VitalRecoder-ANI/internal/vital"
	"github.com/nistring/VitalRecoder-ANI/pkg/config"
)

// testRecording builds a recording with a synthetic ECG (gaussian QRS
// complexes at slightly irregular intervals) and a pleth wave, both at
// 100 Hz.
func testRecording(seconds int) *vital.Recording {
	n := seconds * 100
	ecg := make([]float64, n)
	for i := range ecg {
		ecg[i] = 0.05 * math.Sin(2*math.Pi*0.2*float64(i)/100)
	}
	beat := 0
	for pos := 50; pos < n-20; {
		for i := pos - 10; i <= pos+10; i++ {
			d := float64(i - pos)
			ecg[i] += 1.2 * math.Exp(-d*d/8)
		}
		pos += 85 + (beat*7)%20
		beat++
	}

	ppg := make([]float64, n)
	for i := range ppg {
		ts := float64(i) / 100
		ppg[i] = 50 + 12*math.Sin(2*math.Pi*1.25*ts)
	}

	rec := &vital.Recording{Start: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	rec.AddTrack(&vital.Track{
		Name:    "Intellivue/ECG_II",
		Unit:    "mV",
		Rate:    100,
		MinDisp: -1,
		MaxDisp: 3,
		Records: vital.ChunkSamples(ecg, 100),
	})
	rec.AddTrack(&vital.Track{
		Name:    "Intellivue/PLETH",
		Unit:    "%",
		Rate:    100,
		MinDisp: 0,
		MaxDisp: 100,
		Records: vital.ChunkSamples(ppg, 100),
	})
	return rec
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Pipeline.DataDir = t.TempDir()
	cfg.Pipeline.OutputDir = t.TempDir()
	return cfg
}

func writeRecording(t *testing.T, dir, name string, rec *vital.Recording) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, rec.Save(path))
	return path
}

func TestProcessFileAugmentsRecording(t *testing.T) {
	cfg := testConfig(t)
	filter, err := spi.Lookup(cfg.SPI.Filter)
	require.NoError(t, err)

	path := writeRecording(t, cfg.Pipeline.DataDir, "case01.vpr", testRecording(100))
	p := New(cfg, Options{SPIFilter: filter})
	require.NoError(t, p.ProcessFile(context.Background(), path))

	out, err := vital.Open(filepath.Join(cfg.Pipeline.OutputDir, "case01.vpr"))
	require.NoError(t, err)

	// The raw channels survive alongside cleaned and derived tracks.
	for _, name := range []string{
		"Intellivue/ECG_II",
		"Intellivue/PLETH",
		cleanECGTrack,
		cleanPPGTrack,
		aniTrack,
		spiTrack,
	} {
		_, ok := out.Track(name)
		assert.True(t, ok, "track %s", name)
	}

	// The internal working tracks never reach the output.
	_, ok := out.Track("PLETH")
	assert.False(t, ok)
	_, ok = out.Track("SPI")
	assert.False(t, ok)

	aniT, _ := out.Track(aniTrack)
	require.Len(t, aniT.Records, 1)
	assert.Equal(t, float64(cfg.Signal.WindowSeconds), aniT.Records[0].Offset)
	assert.Len(t, aniT.Records[0].Values, 100)

	// The derived tracks cover exactly the recording span; the ANI track's
	// 64 s anchor must not inflate them with a synthetic tail.
	spiT, _ := out.Track(spiTrack)
	require.Len(t, spiT.Records, 1)
	assert.Len(t, spiT.Records[0].Values, 100)
	for i, v := range spiT.Records[0].Values {
		assert.False(t, math.IsNaN(float64(v)), "SPI second %d", i)
	}

	ppgT, _ := out.Track(cleanPPGTrack)
	total := 0
	for _, r := range ppgT.Records {
		total += len(r.Values)
	}
	assert.Equal(t, 10000, total)

	ecgT, _ := out.Track(cleanECGTrack)
	total = 0
	for _, r := range ecgT.Records {
		total += len(r.Values)
	}
	assert.Equal(t, 10000, total)
}

func TestProcessFileSPIMatchesRecordingLength(t *testing.T) {
	cfg := testConfig(t)
	filter, err := spi.Lookup(cfg.SPI.Filter)
	require.NoError(t, err)

	path := writeRecording(t, cfg.Pipeline.DataDir, "case70.vpr", testRecording(70))
	p := New(cfg, Options{SPIFilter: filter})
	require.NoError(t, p.ProcessFile(context.Background(), path))

	out, err := vital.Open(filepath.Join(cfg.Pipeline.OutputDir, "case70.vpr"))
	require.NoError(t, err)

	spiT, ok := out.Track(spiTrack)
	require.True(t, ok)
	require.Len(t, spiT.Records, 1)
	assert.Len(t, spiT.Records[0].Values, 70)
}

func TestProcessFileWithoutSPIFilter(t *testing.T) {
	cfg := testConfig(t)
	path := writeRecording(t, cfg.Pipeline.DataDir, "case02.vpr", testRecording(80))

	p := New(cfg, Options{})
	require.NoError(t, p.ProcessFile(context.Background(), path))

	out, err := vital.Open(filepath.Join(cfg.Pipeline.OutputDir, "case02.vpr"))
	require.NoError(t, err)

	_, ok := out.Track(aniTrack)
	assert.True(t, ok)
	_, ok = out.Track(spiTrack)
	assert.False(t, ok)
	_, ok = out.Track(cleanPPGTrack)
	assert.True(t, ok, "PPG still gated and cleaned without the filter")
}

func TestProcessFileShortRecording(t *testing.T) {
	// A recording shorter than one analysis window still produces an output
	// file, just without the index track.
	cfg := testConfig(t)
	path := writeRecording(t, cfg.Pipeline.DataDir, "short.vpr", testRecording(30))

	p := New(cfg, Options{})
	require.NoError(t, p.ProcessFile(context.Background(), path))

	out, err := vital.Open(filepath.Join(cfg.Pipeline.OutputDir, "short.vpr"))
	require.NoError(t, err)
	_, ok := out.Track(aniTrack)
	assert.False(t, ok)
	_, ok = out.Track(cleanECGTrack)
	assert.True(t, ok)
}

func TestProcessFileMissingTracks(t *testing.T) {
	cfg := testConfig(t)
	rec := &vital.Recording{Start: time.Now().UTC()}
	rec.AddTrack(&vital.Track{
		Name:    "Intellivue/ART",
		Rate:    100,
		Records: []vital.Record{{Offset: 0, Values: make([]float32, 100)}},
	})
	path := writeRecording(t, cfg.Pipeline.DataDir, "noecg.vpr", rec)

	p := New(cfg, Options{})
	require.NoError(t, p.ProcessFile(context.Background(), path))

	_, err := os.Stat(filepath.Join(cfg.Pipeline.OutputDir, "noecg.vpr"))
	assert.NoError(t, err, "file written even when both channels are absent")
}

func TestProcessFileCancelled(t *testing.T) {
	cfg := testConfig(t)
	path := writeRecording(t, cfg.Pipeline.DataDir, "case03.vpr", testRecording(70))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(cfg, Options{})
	err := p.ProcessFile(ctx, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(cfg.Pipeline.OutputDir, "case03.vpr"))
	assert.True(t, os.IsNotExist(statErr), "no output for an aborted file")
}

func TestProcessFileUnreadable(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.Pipeline.DataDir, "corrupt.vpr")
	require.NoError(t, os.WriteFile(path, []byte("not a recording"), 0o644))

	p := New(cfg, Options{})
	err := p.ProcessFile(context.Background(), path)
	assert.Error(t, err)
}
