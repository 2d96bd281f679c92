package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", RetryConfig{InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	err := Retry(context.Background(), "dead", RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
	}, func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "cancelled", RetryConfig{
		MaxAttempts:  10,
		InitialDelay: time.Millisecond,
	}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestComputeDelayBounded(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2,
		JitterFraction: 0.1,
	}
	for attempt := 1; attempt <= 10; attempt++ {
		d := computeDelay(attempt, cfg)
		assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, d, time.Second, "attempt %d", attempt)
	}
}
