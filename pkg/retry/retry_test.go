package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func alwaysRetryable(error) bool { return true }

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	res, err := Do(context.Background(), 3, time.Millisecond, alwaysRetryable, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Attempts)
}

func TestDo_RetriesUpToBoundThenFails(t *testing.T) {
	calls := 0
	res, err := Do(context.Background(), 3, time.Millisecond, alwaysRetryable, func(context.Context) error {
		calls++
		return errBoom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	// 1 initial attempt + 3 retries = 4 total
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, res.Attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	res, err := Do(context.Background(), 5, time.Millisecond, func(error) bool { return false }, func(context.Context) error {
		calls++
		return errBoom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Attempts)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	res, err := Do(context.Background(), 5, time.Millisecond, alwaysRetryable, func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, res.Attempts)
}
