package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilSucceedsOnLaterTry(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Interval: time.Millisecond, Tries: 5}, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilCountsTries(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Interval: time.Millisecond, Tries: 4}, func(context.Context) (bool, error) {
		calls++
		return false, nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "after 4 tries")
}

func TestUntilKeepsLastConditionError(t *testing.T) {
	err := Until(context.Background(), Options{Interval: time.Millisecond, Tries: 2}, func(context.Context) (bool, error) {
		return false, errors.New("target closed")
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "target closed")
}

func TestUntilStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Until(ctx, Options{Interval: time.Hour, Tries: 3}, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithin(t *testing.T) {
	assert.Equal(t, Options{Interval: 500 * time.Millisecond, Tries: 60}, Within(30*time.Second, 500*time.Millisecond))
	assert.Equal(t, 1, Within(time.Millisecond, time.Second).Tries)
}

func TestEveryRunsUntilTrue(t *testing.T) {
	calls := 0
	err := Every(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("not yet")
		}
		return calls == 5, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}

func TestEveryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Every(ctx, time.Millisecond, func(context.Context) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
