package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		attempts, err := Retry(context.Background(), policy, nil, quietLogger(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts, err := Retry(context.Background(), policy, nil, nil, fail)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 4, attempts)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		permanent := errors.New("bad input")
		attempts, err := Retry(context.Background(), policy, func(err error) bool {
			return !errors.Is(err, permanent)
		}, nil, func(context.Context) error { return permanent })
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, attempts)
	})

	t.Run("stops waiting when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour}
		attempts, err := Retry(ctx, slow, nil, nil, func(context.Context) error {
			cancel()
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, attempts)
	})

	t.Run("zero policy makes one attempt", func(t *testing.T) {
		attempts, err := Retry(context.Background(), RetryPolicy{}, nil, nil, fail)
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})
}

func TestJitter(t *testing.T) {
	assert.Equal(t, time.Second, jitter(time.Second, false))
	for i := 0; i < 20; i++ {
		d := jitter(time.Second, true)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}
