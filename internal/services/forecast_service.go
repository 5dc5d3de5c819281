package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/forecast"
	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/telemetry"
)

// NewForecaster builds the forecaster selected by cfg.Model.
func NewForecaster(cfg config.ForecastConfig, logger *logrus.Logger) (forecast.Forecaster, error) {
	switch strings.ToLower(cfg.Model) {
	case "", config.ForecastModelHolt:
		alpha, beta := cfg.Alpha, cfg.Beta
		if alpha == 0 {
			alpha = forecast.DefaultAlpha
		}
		if beta == 0 {
			beta = forecast.DefaultBeta
		}
		return forecast.NewHoltForecaster(alpha, beta)
	case config.ForecastModelRemote:
		remote := forecast.NewRemoteForecaster(&cfg, logger)
		return NewBreakerForecaster(remote, CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerFailures,
			Timeout:          config.ParseDurationOr(cfg.BreakerCooldown, 30*time.Second),
		}, retryPolicy(cfg.Retries), logger), nil
	default:
		return nil, fmt.Errorf("unknown forecast model %q", cfg.Model)
	}
}

func retryPolicy(retries int) RetryPolicy {
	policy := DefaultRetryPolicy()
	if retries >= 0 {
		policy.MaxRetries = retries
	}
	return policy
}

// ForecastService turns an asset's observed closes into forecaster input
// and wraps the returned points.
type ForecastService struct {
	analysis       *AnalysisService
	forecaster     forecast.Forecaster
	defaultHorizon int
	logger         *logrus.Logger
	now            func() time.Time
}

// NewForecastService creates a new forecast service.
func NewForecastService(analysis *AnalysisService, forecaster forecast.Forecaster, defaultHorizon int, logger *logrus.Logger) *ForecastService {
	if defaultHorizon <= 0 {
		defaultHorizon = forecast.DefaultHorizon
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ForecastService{
		analysis:       analysis,
		forecaster:     forecaster,
		defaultHorizon: defaultHorizon,
		logger:         logger,
		now:            time.Now,
	}
}

// DefaultHorizon returns the horizon used when a caller passes zero.
func (s *ForecastService) DefaultHorizon() int {
	return s.defaultHorizon
}

// Model returns the forecaster's name.
func (s *ForecastService) Model() string {
	return s.forecaster.Name()
}

// HealthCheck pings the forecaster when it is backed by a remote service.
// Local forecasters are always healthy.
func (s *ForecastService) HealthCheck(ctx context.Context) error {
	if hc, ok := s.forecaster.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// ForecastHistory returns the (date, close) pairs whose close was read from
// the source. Synthesized days and interpolated closes are skipped.
func ForecastHistory(series models.AlignedSeries) []models.ForecastPoint {
	history := make([]models.ForecastPoint, 0, series.Len())
	for _, r := range series.Records {
		if !r.Observed(models.ColumnClose) {
			continue
		}
		history = append(history, models.ForecastPoint{Date: r.Date, Value: r.Close})
	}
	return history
}

// Forecast extends asset horizon days past its last observation. A zero
// horizon uses the default.
func (s *ForecastService) Forecast(ctx context.Context, asset string, horizon int) (models.Forecast, error) {
	if horizon == 0 {
		horizon = s.defaultHorizon
	}
	if err := forecast.ValidateHorizon(horizon); err != nil {
		return models.Forecast{}, err
	}

	series, err := s.analysis.Aligned(ctx, asset)
	if err != nil {
		return models.Forecast{}, err
	}
	history := forecast.CleanHistory(ForecastHistory(series))

	ctx, span := telemetry.StartSpan(ctx, telemetry.GetExternalTracer(), "forecast.run",
		telemetry.StringAttribute("asset", asset),
		telemetry.StringAttribute("model", s.forecaster.Name()),
		telemetry.IntAttribute("horizon", horizon),
		telemetry.IntAttribute("history", len(history)))
	defer span.End()

	start := time.Now()
	points, err := s.forecaster.Forecast(ctx, history, horizon)
	if err != nil {
		telemetry.RecordError(span, err)
		return models.Forecast{}, fmt.Errorf("asset %q: %w", asset, err)
	}

	s.logger.WithFields(logrus.Fields{
		"asset":       asset,
		"model":       s.forecaster.Name(),
		"horizon":     horizon,
		"history":     len(history),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Forecast generated")

	return models.Forecast{
		Asset:         asset,
		Model:         s.forecaster.Name(),
		Horizon:       horizon,
		HistoryLength: len(points) - horizon,
		Points:        points,
		GeneratedAt:   s.now().UTC(),
	}, nil
}
