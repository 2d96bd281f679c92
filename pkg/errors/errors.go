package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInputTooShort means the recording does not cover a full analysis
	// window; the whole index computation is refused for that file.
	ErrInputTooShort = errors.New("recording too short for analysis window")

	// ErrDegenerateSignal means the window's RR intervals carry no
	// variability (zero norm after mean subtraction).
	ErrDegenerateSignal = errors.New("degenerate signal")

	// ErrTooFewPeaks means fewer than two beats were found in a window, so
	// no interval sequence can be formed.
	ErrTooFewPeaks = errors.New("too few peaks")

	// ErrTooFewExtrema means the filtered series has fewer than two local
	// maxima or minima, so no envelope can be interpolated.
	ErrTooFewExtrema = errors.New("too few extrema for envelope")

	ErrNoSamples         = errors.New("no samples in track")
	ErrTooManyGaps       = errors.New("too many missing samples")
	ErrTrackMissing      = errors.New("track not found in recording")
	ErrFilterUnavailable = errors.New("filter not available")
	ErrInvalidInput      = errors.New("invalid input")
)

// ProcessError wraps a pipeline failure with the recording and stage it
// occurred in so batch logs stay attributable.
type ProcessError struct {
	Recording string
	Stage     string
	Err       error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Recording, e.Stage, e.Err.Error())
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func NewProcess(recording, stage string, err error) *ProcessError {
	return &ProcessError{
		Recording: recording,
		Stage:     stage,
		Err:       err,
	}
}

// Fatal reports whether an error should abort processing of the file it
// occurred in. Signal-quality refusals skip one index computation but the
// file is still written out; anything else (I/O failures, cancellation)
// stops the file.
func Fatal(err error) bool {
	switch {
	case errors.Is(err, ErrInputTooShort),
		errors.Is(err, ErrTooManyGaps),
		errors.Is(err, ErrNoSamples),
		errors.Is(err, ErrTrackMissing),
		errors.Is(err, ErrDegenerateSignal),
		errors.Is(err, ErrTooFewPeaks),
		errors.Is(err, ErrTooFewExtrema):
		return false
	default:
		return err != nil
	}
}
