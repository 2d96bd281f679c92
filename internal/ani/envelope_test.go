package ani

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

func TestExtractEnvelopesClamps(t *testing.T) {
	cfg := testSignalConfig()

	// A large in-band oscillation pins both envelopes at the clip bound.
	series := make([]float64, cfg.GridLen())
	for i := range series {
		ts := float64(i) / cfg.InterpolationRate
		series[i] = 5 * math.Sin(2*math.Pi*0.25*ts)
	}

	upper, lower, filtered, err := ExtractEnvelopes(series, cfg)
	require.NoError(t, err)
	require.Len(t, upper, len(series))
	require.Len(t, lower, len(series))
	require.Len(t, filtered, len(series))

	for i := range upper {
		assert.LessOrEqual(t, upper[i], cfg.EnvelopeClip, "upper at %d", i)
		assert.GreaterOrEqual(t, lower[i], -cfg.EnvelopeClip, "lower at %d", i)
	}
	// Mid-window, away from edge transients, the oscillation is big enough
	// to actually reach the bounds.
	mid := len(upper) / 2
	assert.InDelta(t, cfg.EnvelopeClip, upper[mid], 1e-9)
	assert.InDelta(t, -cfg.EnvelopeClip, lower[mid], 1e-9)
}

func TestExtractEnvelopesOrdering(t *testing.T) {
	cfg := testSignalConfig()
	series := make([]float64, cfg.GridLen())
	for i := range series {
		ts := float64(i) / cfg.InterpolationRate
		series[i] = 0.02*math.Sin(2*math.Pi*0.25*ts) + 0.01*math.Sin(2*math.Pi*0.33*ts)
	}

	upper, lower, _, err := ExtractEnvelopes(series, cfg)
	require.NoError(t, err)
	// The first and last few seconds ride extrapolated segments; check the
	// interior, where both envelopes pass through real extrema.
	for i := 32; i < len(upper)-32; i++ {
		assert.GreaterOrEqual(t, upper[i], lower[i]-1e-9, "envelopes crossed at %d", i)
	}
}

func TestExtractEnvelopesFlatSeries(t *testing.T) {
	cfg := testSignalConfig()
	_, _, _, err := ExtractEnvelopes(make([]float64, cfg.GridLen()), cfg)
	assert.ErrorIs(t, err, apperrors.ErrTooFewExtrema)
}
