package readiness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_FixedDelayOnly(t *testing.T) {
	start := time.Now()
	calls := 0

	err := Wait(context.Background(), "core-db", Options{MinDelay: 20 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Zero(t, calls, "polling disabled without a timeout")
}

func TestWait_PollsUntilReady(t *testing.T) {
	calls := 0
	err := Wait(context.Background(), "core-db", Options{Timeout: time.Second, Interval: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWait_Timeout(t *testing.T) {
	err := Wait(context.Background(), "api-db", Options{Timeout: 30 * time.Millisecond, Interval: 5 * time.Millisecond}, func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api-db not ready")
}

func TestWait_NilCheck(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), "core-db", Options{Timeout: time.Second}, nil))
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
