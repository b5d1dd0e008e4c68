package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWithNotify_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("connection refused")
	var notified []int

	err := DoWithNotify(context.Background(), fastConfig(3), "postgres", func() error {
		return sentinel
	}, func(attempt int, err error, nextDelay time.Duration) {
		notified = append(notified, attempt)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "postgres: max retry attempts (3) exceeded")
	assert.Equal(t, []int{1, 2}, notified)
}

func TestDo_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(5), func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoWithLog_ReturnsFirstSuccess(t *testing.T) {
	err := DoWithLog(context.Background(), fastConfig(2), "redis", func() error { return nil })
	assert.NoError(t, err)
}
