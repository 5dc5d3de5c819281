package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/models"
)

// RemoteRequest is the body POSTed to the forecasting service.
type RemoteRequest struct {
	Horizon int           `json:"horizon"`
	History []RemotePoint `json:"history"`
}

// RemotePoint is a (date, value) pair on the wire. Dates are YYYY-MM-DD.
type RemotePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// RemoteResponse is the forecasting service reply.
type RemoteResponse struct {
	Points []RemotePoint `json:"points"`
}

// ErrorResponse is the error body returned by the forecasting service.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RemoteForecaster delegates to an external forecasting service over HTTP.
type RemoteForecaster struct {
	HTTPClient *http.Client
	BaseURL    string
	logger     *logrus.Logger
}

// NewRemoteForecaster creates a client for cfg.ServiceURL.
func NewRemoteForecaster(cfg *config.ForecastConfig, logger *logrus.Logger) *RemoteForecaster {
	timeout := time.Duration(cfg.GetTimeout()) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RemoteForecaster{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL: strings.TrimSuffix(cfg.GetServiceURL(), "/"),
		logger:  logger,
	}
}

func (r *RemoteForecaster) Name() string {
	return "remote"
}

func (r *RemoteForecaster) Forecast(ctx context.Context, history []models.ForecastPoint, horizon int) ([]models.ForecastPoint, error) {
	if err := ValidateHorizon(horizon); err != nil {
		return nil, err
	}
	points := CleanHistory(history)
	if len(points) < 2 {
		return nil, ErrInsufficientHistory
	}

	req := RemoteRequest{Horizon: horizon, History: make([]RemotePoint, len(points))}
	for i, p := range points {
		req.History[i] = RemotePoint{Date: p.Date.Format(time.DateOnly), Value: p.Value}
	}

	var resp RemoteResponse
	if err := r.makeRequest(ctx, http.MethodPost, "/forecast", req, &resp); err != nil {
		return nil, err
	}

	out := make([]models.ForecastPoint, 0, len(resp.Points))
	for _, p := range resp.Points {
		d, err := time.Parse(time.DateOnly, p.Date)
		if err != nil {
			return nil, fmt.Errorf("forecast service returned bad date %q: %w", p.Date, err)
		}
		out = append(out, models.ForecastPoint{Date: d, Value: p.Value})
	}
	if want := len(points) + horizon; len(out) != want {
		return nil, fmt.Errorf("forecast service returned %d points, expected %d", len(out), want)
	}
	return out, nil
}

// HealthCheck pings the service's /health endpoint.
func (r *RemoteForecaster) HealthCheck(ctx context.Context) error {
	return r.makeRequest(ctx, http.MethodGet, "/health", nil, nil)
}

func (r *RemoteForecaster) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := r.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Celebrum-Analytics/1.0")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && r.logger != nil {
			r.logger.WithError(err).Warn("Error closing response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return fmt.Errorf("forecast service error (%d): %s", resp.StatusCode, errorResp.Error)
		}
		return fmt.Errorf("forecast service error (%d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
