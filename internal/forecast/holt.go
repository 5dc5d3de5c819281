package forecast

import (
	"context"
	"fmt"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// Default Holt smoothing factors.
const (
	DefaultAlpha = 0.5
	DefaultBeta  = 0.1
)

// HoltForecaster is Holt's linear trend model: double exponential
// smoothing of level and trend.
type HoltForecaster struct {
	alpha float64
	beta  float64
}

// NewHoltForecaster validates the smoothing factors, which must lie in (0, 1].
func NewHoltForecaster(alpha, beta float64) (*HoltForecaster, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("holt alpha must be in (0, 1], got %v", alpha)
	}
	if beta <= 0 || beta > 1 {
		return nil, fmt.Errorf("holt beta must be in (0, 1], got %v", beta)
	}
	return &HoltForecaster{alpha: alpha, beta: beta}, nil
}

func (h *HoltForecaster) Name() string {
	return "holt"
}

// Forecast returns the one-step-ahead fit of every usable history point
// followed by the linear extrapolation of the final level and trend.
func (h *HoltForecaster) Forecast(ctx context.Context, history []models.ForecastPoint, horizon int) ([]models.ForecastPoint, error) {
	if err := ValidateHorizon(horizon); err != nil {
		return nil, err
	}
	points := CleanHistory(history)
	if len(points) < 2 {
		return nil, ErrInsufficientHistory
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.ForecastPoint, 0, len(points)+horizon)
	level := points[0].Value
	trend := points[1].Value - points[0].Value
	out = append(out, models.ForecastPoint{Date: points[0].Date, Value: level})

	for _, p := range points[1:] {
		fitted := level + trend
		out = append(out, models.ForecastPoint{Date: p.Date, Value: fitted})

		prevLevel := level
		level = h.alpha*p.Value + (1-h.alpha)*(level+trend)
		trend = h.beta*(level-prevLevel) + (1-h.beta)*trend
	}

	for i, d := range FutureDates(points[len(points)-1].Date, horizon) {
		out = append(out, models.ForecastPoint{Date: d, Value: level + float64(i+1)*trend})
	}
	return out, nil
}
