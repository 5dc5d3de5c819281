package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/irfndi/celebrum-analytics/internal/cache"
)

var startTime = time.Now()

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
	statusDisabled  = "disabled"
)

// HealthChecker is anything that can report its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ForecastHealth is the forecast service as seen by the health check.
type ForecastHealth interface {
	HealthChecker
	Model() string
}

type HealthHandler struct {
	redis     HealthChecker
	forecasts ForecastHealth
	series    SeriesCacheInterface
	version   string
	timeout   time.Duration
}

// MemoryInfo is the host memory snapshot.
type MemoryInfo struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Cache     *cache.Stats      `json:"cache,omitempty"`
	Memory    *MemoryInfo       `json:"memory,omitempty"`
}

// NewHealthHandler creates a health handler. A nil redis reports the
// second tier as disabled.
func NewHealthHandler(redis HealthChecker, forecasts ForecastHealth, series SeriesCacheInterface, version string) *HealthHandler {
	return &HealthHandler{
		redis:     redis,
		forecasts: forecasts,
		series:    series,
		version:   version,
		timeout:   5 * time.Second,
	}
}

// HealthCheck reports the state of every dependency. Any unhealthy
// dependency turns the response into a 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	services := map[string]string{"series_cache": statusHealthy}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			services["redis"] = statusUnhealthy + ": " + err.Error()
		} else {
			services["redis"] = statusHealthy
		}
	} else {
		services["redis"] = statusDisabled
	}

	if h.forecasts != nil {
		name := "forecast_" + h.forecasts.Model()
		if err := h.forecasts.HealthCheck(ctx); err != nil {
			services[name] = statusUnhealthy + ": " + err.Error()
		} else {
			services[name] = statusHealthy
		}
	}

	overall := statusHealthy
	for _, s := range services {
		if s != statusHealthy && s != statusDisabled {
			overall = statusDegraded
			break
		}
	}

	resp := HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Services:  services,
		Version:   h.version,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Memory:    memoryInfo(ctx),
	}
	if h.series != nil {
		stats := h.series.Stats()
		resp.Cache = &stats
	}

	status := http.StatusOK
	if overall != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// LivenessCheck only proves the process answers.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func memoryInfo(ctx context.Context) *MemoryInfo {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	return &MemoryInfo{
		TotalBytes:  vm.Total,
		UsedBytes:   vm.Used,
		UsedPercent: vm.UsedPercent,
	}
}
