package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/celebrum-analytics/internal/cache"
	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/forecast"
	"github.com/irfndi/celebrum-analytics/internal/services"
	"github.com/irfndi/celebrum-analytics/internal/source"
)

const (
	bitcoinCSV = `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-01,99,101,98,100,100,10
2024-01-02,100,111,99,110,110,12
2024-01-03,110,112,98,99,99,9
2024-01-04,99,121,99,120,120,15
2024-01-05,120,131,119,130,130,11
`
	goldCSV = `Date,Close
2024-01-01,50
2024-01-03,52
2024-01-05,54
`
	flatCSV = `Date,Close
2024-01-01,10
2024-01-02,10
2024-01-03,10
`
	badCSV = `Date,Volume
2024-01-01,5
`
)

type testEnv struct {
	analysis  *services.AnalysisService
	forecasts *services.ForecastService
	analytics *services.CacheAnalyticsService
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	for name, content := range map[string]string{
		"bitcoin.csv": bitcoinCSV,
		"gold.csv":    goldCSV,
		"flat.csv":    flatCSV,
		"bad.csv":     badCSV,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cfg := &config.Config{
		Data: config.DataConfig{
			Dir: dir,
			Assets: map[string]string{
				"bitcoin": "bitcoin.csv",
				"gold":    "gold.csv",
				"flat":    "flat.csv",
				"bad":     "bad.csv",
			},
			DisplayNames: map[string]string{"bitcoin": "Bitcoin"},
		},
		Analysis: config.AnalysisConfig{VolatilityWindow: 2, MaxParallel: 2, Annualize: true},
	}

	logger := quietLogger()
	analytics := services.NewCacheAnalyticsService(nil, logger)
	src := source.NewFileSource(dir, cfg.Data.Assets)
	seriesCache := cache.NewSeriesCache(src, services.LoadAligned(src, 0), cache.Options{
		Logger:   logger,
		Recorder: analytics,
	})
	analysis := services.NewAnalysisService(cfg, src, seriesCache, logger)

	holt, err := forecast.NewHoltForecaster(forecast.DefaultAlpha, forecast.DefaultBeta)
	require.NoError(t, err)

	return &testEnv{
		analysis:  analysis,
		forecasts: services.NewForecastService(analysis, holt, 3, logger),
		analytics: analytics,
	}
}

func (e *testEnv) router() *gin.Engine {
	r := gin.New()
	data := NewDataHandler(e.analysis)
	analysis := NewAnalysisHandler(e.analysis)
	fc := NewForecastHandler(e.forecasts)
	cacheHandler := NewCacheHandler(e.analytics, e.analysis.Cache(), e.analysis.HasAsset)

	r.GET("/api/v1/assets", data.ListAssets)
	r.GET("/api/v1/data/:asset", data.GetRawSeries)
	r.GET("/api/v1/assets/:asset/aligned", data.GetAlignedSeries)
	r.GET("/api/v1/assets/:asset/indicators", analysis.GetIndicators)
	r.GET("/api/v1/assets/:asset/forecast", fc.GetForecast)
	r.GET("/api/v1/analysis/comparison", analysis.GetComparison)
	r.GET("/api/v1/analysis/returns", analysis.GetCumulativeReturns)
	r.GET("/api/v1/analysis/volatility", analysis.GetVolatility)
	r.GET("/api/v1/analysis/correlation", analysis.GetCorrelation)
	r.GET("/api/v1/analysis/summary", analysis.GetSummary)
	r.GET("/api/v1/analysis/performance", analysis.GetPerformance)
	r.GET("/api/v1/cache/stats", cacheHandler.GetCacheStats)
	r.POST("/api/v1/cache/invalidate", cacheHandler.Invalidate)
	return r
}

// doRequest serves one request and decodes the JSON body into out.
func doRequest(t *testing.T, r http.Handler, method, target, body string, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}
