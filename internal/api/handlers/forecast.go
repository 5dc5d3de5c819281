package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v6"

	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/utils"
)

// Forecaster produces price forecasts for one asset.
type Forecaster interface {
	Forecast(ctx context.Context, asset string, horizon int) (models.Forecast, error)
	DefaultHorizon() int
}

// ForecastPointResponse is one forecast date and value.
type ForecastPointResponse struct {
	Date  string     `json:"date"`
	Value null.Float `json:"value"`
}

// ForecastResponse is the JSON form of models.Forecast, with the future
// points split from the fitted history.
type ForecastResponse struct {
	Asset         string                  `json:"asset"`
	Model         string                  `json:"model"`
	Horizon       int                     `json:"horizon"`
	HistoryLength int                     `json:"history_length"`
	GeneratedAt   time.Time               `json:"generated_at"`
	Fitted        []ForecastPointResponse `json:"fitted"`
	Forecast      []ForecastPointResponse `json:"forecast"`
}

// ForecastHandler serves price forecasts.
type ForecastHandler struct {
	forecasts Forecaster
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(forecasts Forecaster) *ForecastHandler {
	return &ForecastHandler{forecasts: forecasts}
}

// GetForecast forecasts the asset's close for the next days
// @Summary Price forecast
// @Tags forecast
// @Param asset path string true "Asset key"
// @Param days query int false "Horizon in days (1-365)"
// @Produce json
// @Success 200 {object} ForecastResponse
// @Router /api/v1/assets/{asset}/forecast [get]
func (h *ForecastHandler) GetForecast(c *gin.Context) {
	days, ok := queryInt(c, "days", h.forecasts.DefaultHorizon())
	if !ok {
		respondError(c, utils.NewValidationError("days", "days must be an integer"))
		return
	}

	fc, err := h.forecasts.Forecast(c.Request.Context(), c.Param("asset"), days)
	if err != nil {
		writeError(c, forecastStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, newForecastResponse(fc))
}

// forecastStatus reports failures of the forecaster itself as 502; input
// and data errors map as everywhere else.
func forecastStatus(err error) int {
	if status := statusFor(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusBadGateway
}

func newForecastResponse(fc models.Forecast) ForecastResponse {
	history := fc.Points
	if fc.HistoryLength <= len(history) {
		history = history[:fc.HistoryLength]
	}
	return ForecastResponse{
		Asset:         fc.Asset,
		Model:         fc.Model,
		Horizon:       fc.Horizon,
		HistoryLength: fc.HistoryLength,
		GeneratedAt:   fc.GeneratedAt,
		Fitted:        pointsResponse(history),
		Forecast:      pointsResponse(fc.Future()),
	}
}

func pointsResponse(points []models.ForecastPoint) []ForecastPointResponse {
	out := make([]ForecastPointResponse, len(points))
	for i, p := range points {
		out[i] = ForecastPointResponse{Date: formatDate(p.Date), Value: models.Nullable(p.Value)}
	}
	return out
}
