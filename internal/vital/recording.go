// Package vital implements the recording container the pipeline reads and
// writes: a set of named tracks, each holding timed blocks of float32
// samples, persisted in a compact little-endian binary format.
package vital

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// Record is one contiguous block of samples within a track, anchored at
// Offset seconds from the recording start.
type Record struct {
	Offset float64
	Values []float32
}

// Track is a named channel of a recording.
type Track struct {
	Name    string
	Unit    string
	Rate    float64
	MinDisp float64
	MaxDisp float64
	Color   uint32
	Records []Record
}

// Recording is a whole monitor file: a start time plus its tracks.
type Recording struct {
	Start  time.Time
	Tracks []*Track
}

// Track returns the named track, or false when absent.
func (r *Recording) Track(name string) (*Track, bool) {
	for _, t := range r.Tracks {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// AddTrack appends a track to the recording.
func (r *Recording) AddTrack(t *Track) {
	r.Tracks = append(r.Tracks, t)
}

// RemoveTrack deletes the named track and reports whether it was present.
func (r *Recording) RemoveTrack(name string) bool {
	for i, t := range r.Tracks {
		if t.Name == name {
			r.Tracks = append(r.Tracks[:i], r.Tracks[i+1:]...)
			return true
		}
	}
	return false
}

// Duration returns the recording length in seconds, taken as the furthest
// extent of any track's records.
func (r *Recording) Duration() float64 {
	var d float64
	for _, t := range r.Tracks {
		if t.Rate <= 0 {
			continue
		}
		for _, rec := range t.Records {
			end := rec.Offset + float64(len(rec.Values))/t.Rate
			if end > d {
				d = end
			}
		}
	}
	return d
}

// ToSamples renders the named track as a dense series at the given rate,
// spanning that track's own extent. Positions not covered by any record
// hold NaN. Sizing from the track itself, not the whole recording, keeps
// the view stable when derived tracks with later offsets are attached
// alongside it. This is the dense-array view the signal pipeline consumes.
func (r *Recording) ToSamples(name string, rate float64) ([]float64, error) {
	track, ok := r.Track(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTrackMissing, name)
	}
	if rate <= 0 || track.Rate <= 0 {
		return nil, fmt.Errorf("%w: non-positive rate for track %s", apperrors.ErrInvalidInput, name)
	}

	var extent float64
	for _, rec := range track.Records {
		end := rec.Offset + float64(len(rec.Values))/track.Rate
		if end > extent {
			extent = end
		}
	}
	n := int(math.Ceil(extent * rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	for _, rec := range track.Records {
		for j, v := range rec.Values {
			t := rec.Offset + float64(j)/track.Rate
			idx := int(math.Round(t * rate))
			if idx >= 0 && idx < n {
				out[idx] = float64(v)
			}
		}
	}
	return out, nil
}

// ChunkSamples splits a dense sample series into one record per second so
// large waveforms are stored in fixed-size blocks matching the sample rate.
func ChunkSamples(data []float64, rate float64) []Record {
	chunk := int(rate)
	if chunk < 1 {
		chunk = 1
	}
	recs := make([]Record, 0, (len(data)+chunk-1)/chunk)
	for start := 0; start < len(data); start += chunk {
		end := start + chunk
		if end > len(data) {
			end = len(data)
		}
		values := make([]float32, end-start)
		for i, v := range data[start:end] {
			values[i] = float32(v)
		}
		recs = append(recs, Record{
			Offset: float64(start) / rate,
			Values: values,
		})
	}
	return recs
}
