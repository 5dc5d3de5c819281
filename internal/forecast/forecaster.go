// Package forecast holds the forecasting collaborators. The analytics core
// only prepares (date, value) history and consumes the returned points; the
// models behind this interface are interchangeable.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// Horizon bounds in days.
const (
	MinHorizon     = 1
	MaxHorizon     = 365
	DefaultHorizon = 180
)

var (
	// ErrInsufficientHistory is returned when fewer than two usable points
	// are supplied.
	ErrInsufficientHistory = errors.New("forecast needs at least two history points")
	// ErrInvalidHorizon is returned for horizons outside [MinHorizon, MaxHorizon].
	ErrInvalidHorizon = fmt.Errorf("forecast horizon must be between %d and %d days", MinHorizon, MaxHorizon)
)

// Forecaster fits history and extends it horizon days past its last date.
// The result holds one fitted point per usable history point followed by
// horizon future daily points.
type Forecaster interface {
	Name() string
	Forecast(ctx context.Context, history []models.ForecastPoint, horizon int) ([]models.ForecastPoint, error)
}

// ValidateHorizon checks horizon against the supported range.
func ValidateHorizon(horizon int) error {
	if horizon < MinHorizon || horizon > MaxHorizon {
		return fmt.Errorf("%w, got %d", ErrInvalidHorizon, horizon)
	}
	return nil
}

// CleanHistory drops missing values, sorts by date and keeps the last point
// of any duplicated day.
func CleanHistory(history []models.ForecastPoint) []models.ForecastPoint {
	out := make([]models.ForecastPoint, 0, len(history))
	for _, p := range history {
		if models.IsMissing(p.Value) {
			continue
		}
		out = append(out, models.ForecastPoint{Date: models.Day(p.Date), Value: p.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for _, p := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// FutureDates lists horizon consecutive days after last.
func FutureDates(last time.Time, horizon int) []time.Time {
	last = models.Day(last)
	dates := make([]time.Time, horizon)
	for i := range dates {
		dates[i] = last.AddDate(0, 0, i+1)
	}
	return dates
}
