package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/forecast"
	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/source"
)

type MockForecaster struct {
	mock.Mock
}

func (m *MockForecaster) Name() string {
	return "mock"
}

func (m *MockForecaster) Forecast(ctx context.Context, history []models.ForecastPoint, horizon int) ([]models.ForecastPoint, error) {
	args := m.Called(ctx, history, horizon)
	if pts := args.Get(0); pts != nil {
		return pts.([]models.ForecastPoint), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestNewForecaster(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.ForecastConfig
		wantName string
		wantErr  bool
	}{
		{"default model", config.ForecastConfig{}, "holt", false},
		{"holt", config.ForecastConfig{Model: "holt", Alpha: 0.3, Beta: 0.2}, "holt", false},
		{"remote", config.ForecastConfig{Model: "Remote", ServiceURL: "http://localhost:3001"}, "remote", false},
		{"bad holt alpha", config.ForecastConfig{Model: "holt", Alpha: 2}, "", true},
		{"unknown", config.ForecastConfig{Model: "prophet"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewForecaster(tt.cfg, quietLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, f.Name())
		})
	}
}

func TestForecastHistory_SkipsFilledAndMissing(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r1 := models.EmptyRecord(start)
	r1.Close = 10
	r2 := models.EmptyRecord(start.AddDate(0, 0, 1))
	r2.Close = 11
	r2.Filled = true
	r3 := models.EmptyRecord(start.AddDate(0, 0, 2))
	r4 := models.EmptyRecord(start.AddDate(0, 0, 3))
	r4.Close = 13
	r5 := models.EmptyRecord(start.AddDate(0, 0, 4))
	r5.Close = 14
	r5.Interpolated = r5.Interpolated.With(models.ColumnClose)

	history := ForecastHistory(models.AlignedSeries{PriceSeries: models.PriceSeries{
		Asset:   "gold",
		Records: []models.PriceRecord{r1, r2, r3, r4, r5},
	}})
	require.Len(t, history, 2)
	assert.Equal(t, 10.0, history[0].Value)
	assert.Equal(t, r4.Date, history[1].Date)
}

func TestForecastHistory_SkipsUnreadableCloses(t *testing.T) {
	svc := newUnreadableCloseService(t)

	series, err := svc.Aligned(context.Background(), "gappy")
	require.NoError(t, err)
	require.Equal(t, 5, series.Len())

	history := ForecastHistory(series)
	require.Len(t, history, 4)
	for _, p := range history {
		assert.NotEqual(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), p.Date)
	}
}

func TestForecastService_Holt(t *testing.T) {
	f := newFixture(t)
	holt, err := forecast.NewHoltForecaster(forecast.DefaultAlpha, forecast.DefaultBeta)
	require.NoError(t, err)
	svc := NewForecastService(f.analysis, holt, f.cfg.Forecast.Horizon, quietLogger())
	assert.Equal(t, 4, svc.DefaultHorizon())

	fc, err := svc.Forecast(context.Background(), "gold", 2)
	require.NoError(t, err)
	assert.Equal(t, "gold", fc.Asset)
	assert.Equal(t, "holt", fc.Model)
	assert.Equal(t, 2, fc.Horizon)
	assert.Equal(t, 3, fc.HistoryLength)
	require.Len(t, fc.Points, 5)

	future := fc.Future()
	require.Len(t, future, 2)
	assert.Equal(t, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), future[0].Date)
	assert.Equal(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), future[1].Date)

	fc, err = svc.Forecast(context.Background(), "gold", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, fc.Horizon)
	assert.Len(t, fc.Future(), 4)
}

func TestForecastService_Errors(t *testing.T) {
	f := newFixture(t)
	m := new(MockForecaster)
	svc := NewForecastService(f.analysis, m, 0, quietLogger())
	assert.Equal(t, forecast.DefaultHorizon, svc.DefaultHorizon())

	_, err := svc.Forecast(context.Background(), "gold", forecast.MaxHorizon+1)
	assert.ErrorIs(t, err, forecast.ErrInvalidHorizon)

	_, err = svc.Forecast(context.Background(), "doge", 10)
	assert.ErrorIs(t, err, source.ErrUnknownAsset)

	m.On("Forecast", mock.Anything, mock.Anything, 10).Return(nil, forecast.ErrInsufficientHistory).Once()
	_, err = svc.Forecast(context.Background(), "flat", 10)
	assert.ErrorIs(t, err, forecast.ErrInsufficientHistory)
	assert.Contains(t, err.Error(), `asset "flat"`)
	m.AssertExpectations(t)
}

func TestForecastService_PassesObservedHistory(t *testing.T) {
	f := newFixture(t)
	m := new(MockForecaster)
	svc := NewForecastService(f.analysis, m, 3, quietLogger())

	var seen []models.ForecastPoint
	m.On("Forecast", mock.Anything, mock.Anything, 3).Run(func(args mock.Arguments) {
		seen = args.Get(1).([]models.ForecastPoint)
	}).Return([]models.ForecastPoint{{}, {}, {}, {}, {}, {}}, nil).Once()

	fc, err := svc.Forecast(context.Background(), "gold", 0)
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, []float64{50, 52, 54}, []float64{seen[0].Value, seen[1].Value, seen[2].Value})
	assert.Equal(t, "mock", fc.Model)
	assert.Equal(t, 3, fc.HistoryLength)
}
