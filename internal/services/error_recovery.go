package services

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryPolicy is used for calls to the forecasting service.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry runs op until it succeeds, returns an error retryable rejects, or
// the policy is exhausted. Waiting between attempts stops early when ctx is
// done. It returns the number of attempts made and the last error.
func Retry(ctx context.Context, policy RetryPolicy, retryable func(error) bool, logger *logrus.Logger, op func(context.Context) error) (int, error) {
	delay := policy.InitialDelay
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(ctx); err == nil {
			return attempt + 1, nil
		}
		if attempt >= policy.MaxRetries || (retryable != nil && !retryable(err)) {
			return attempt + 1, err
		}

		wait := jitter(delay, policy.JitterEnabled)
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"attempt":  attempt + 1,
				"delay_ms": wait.Milliseconds(),
				"error":    err.Error(),
			}).Debug("Retrying operation")
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, err
		case <-timer.C:
		}

		if policy.BackoffFactor > 1 {
			delay = time.Duration(float64(delay) * policy.BackoffFactor)
		}
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}

// jitter spreads d by up to 25% either way.
func jitter(d time.Duration, enabled bool) time.Duration {
	if !enabled || d <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*0.25*(2*rand.Float64()-1))
}
