package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-analytics/internal/forecast"
	"github.com/irfndi/celebrum-analytics/internal/models"
)

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	Closed CircuitBreakerState = iota
	Open
	HalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	SuccessThreshold int           `json:"success_threshold"` // successes in half-open before closing
	Timeout          time.Duration `json:"timeout"`           // time open before trying half-open
	MaxRequests      int           `json:"max_requests"`      // concurrent trial calls allowed in half-open
}

// CircuitBreakerStats holds statistics for the circuit breaker
type CircuitBreakerStats struct {
	State              string    `json:"state"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RejectedRequests   int64     `json:"rejected_requests"`
	LastFailureTime    time.Time `json:"last_failure_time"`
	LastSuccessTime    time.Time `json:"last_success_time"`
	StateChanges       int64     `json:"state_changes"`
}

// CircuitBreaker stops calling a failing dependency for a while. The lock
// is only held to admit a call and to record its outcome.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	// IsFailure decides which errors count against the dependency. The
	// default counts every error except context cancellation.
	IsFailure func(error) bool

	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	inFlight        int
	lastStateChange time.Time
	stats           CircuitBreakerStats
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger,
		now:             time.Now,
		IsFailure:       func(err error) bool { return !errors.Is(err, context.Canceled) },
		state:           Closed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	start := cb.now()
	err := fn(ctx)
	cb.record(err, cb.now().Sub(start))
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++
	if cb.state == Open && cb.now().Sub(cb.lastStateChange) >= cb.config.Timeout {
		cb.setState(HalfOpen)
	}

	switch {
	case cb.state == Open,
		cb.state == HalfOpen && cb.inFlight >= cb.config.MaxRequests:
		cb.stats.RejectedRequests++
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"state":           cb.state.String(),
		}).Debug("Circuit breaker rejected request")
		return ErrCircuitOpen
	}
	cb.inFlight++
	return nil
}

func (cb *CircuitBreaker) record(err error, duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.inFlight--

	if err == nil || !cb.IsFailure(err) {
		cb.onSuccess()
		return
	}
	cb.onFailure(err, duration)
}

func (cb *CircuitBreaker) onSuccess() {
	cb.stats.SuccessfulRequests++
	cb.stats.LastSuccessTime = cb.now()

	switch cb.state {
	case Closed:
		cb.failureCount = 0
	case HalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(Closed)
		}
	}
}

func (cb *CircuitBreaker) onFailure(err error, duration time.Duration) {
	cb.stats.FailedRequests++
	cb.stats.LastFailureTime = cb.now()

	switch cb.state {
	case Closed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(Open)
		}
	case HalfOpen:
		cb.setState(Open)
	}

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"state":           cb.state.String(),
		"error":           err.Error(),
		"duration_ms":     duration.Milliseconds(),
		"failure_count":   cb.failureCount,
	}).Warn("Circuit breaker: failed execution")
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()
	cb.failureCount = 0
	cb.successCount = 0
	cb.stats.StateChanges++

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"old_state":       oldState.String(),
		"new_state":       newState.String(),
	}).Info("Circuit breaker state changed")
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns the current statistics
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	stats := cb.stats
	stats.State = cb.state.String()
	return stats
}

// IsOpen reports whether calls are currently rejected.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.GetState() == Open
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(Closed)
	cb.failureCount = 0
}

// BreakerForecaster guards a remote forecaster with retries and a
// CircuitBreaker. Input errors such as a bad horizon or a short history are
// neither retried nor counted against the service.
type BreakerForecaster struct {
	next    forecast.Forecaster
	breaker *CircuitBreaker
	retry   RetryPolicy
	logger  *logrus.Logger
}

// NewBreakerForecaster wraps next. A zero retry policy makes one attempt.
func NewBreakerForecaster(next forecast.Forecaster, config CircuitBreakerConfig, retry RetryPolicy, logger *logrus.Logger) *BreakerForecaster {
	breaker := NewCircuitBreaker("forecast_"+next.Name(), config, logger)
	breaker.IsFailure = isServiceFailure
	return &BreakerForecaster{next: next, breaker: breaker, retry: retry, logger: breaker.logger}
}

func isServiceFailure(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, forecast.ErrInvalidHorizon) &&
		!errors.Is(err, forecast.ErrInsufficientHistory)
}

func (b *BreakerForecaster) Name() string {
	return b.next.Name()
}

func (b *BreakerForecaster) Forecast(ctx context.Context, history []models.ForecastPoint, horizon int) ([]models.ForecastPoint, error) {
	var points []models.ForecastPoint
	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := Retry(ctx, b.retry, isServiceFailure, b.logger, func(ctx context.Context) error {
			var err error
			points, err = b.next.Forecast(ctx, history, horizon)
			return err
		})
		return err
	})
	return points, err
}

// HealthCheck reports an open breaker as unhealthy, otherwise defers to
// the wrapped forecaster when it can check itself.
func (b *BreakerForecaster) HealthCheck(ctx context.Context) error {
	if b.breaker.IsOpen() {
		return ErrCircuitOpen
	}
	if hc, ok := b.next.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Breaker exposes the breaker for stats.
func (b *BreakerForecaster) Breaker() *CircuitBreaker {
	return b.breaker
}
