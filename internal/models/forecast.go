package models

import "time"

// ForecastPoint is one (date, value) pair exchanged with a forecaster.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Forecast is a forecaster's output for one asset. Points covers the fitted
// history followed by Horizon future days.
type Forecast struct {
	Asset         string          `json:"asset"`
	Model         string          `json:"model"`
	Horizon       int             `json:"horizon"`
	HistoryLength int             `json:"history_length"`
	Points        []ForecastPoint `json:"points"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// Future returns only the points after the last history date.
func (f Forecast) Future() []ForecastPoint {
	if f.HistoryLength >= len(f.Points) {
		return nil
	}
	return f.Points[f.HistoryLength:]
}
