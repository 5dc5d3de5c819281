// Package api wires the HTTP handlers onto a gin router.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/irfndi/celebrum-analytics/internal/api/handlers"
	"github.com/irfndi/celebrum-analytics/internal/database"
	"github.com/irfndi/celebrum-analytics/internal/services"
)

// Dependencies are the services the routes are served from. Redis and
// Forecasts may be nil.
type Dependencies struct {
	Analysis       *services.AnalysisService
	Forecasts      *services.ForecastService
	CacheAnalytics *services.CacheAnalyticsService
	Redis          *database.RedisClient
	Version        string
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	var redisCheck handlers.HealthChecker
	if deps.Redis != nil {
		redisCheck = deps.Redis
	}
	var forecastCheck handlers.ForecastHealth
	if deps.Forecasts != nil {
		forecastCheck = deps.Forecasts
	}

	seriesCache := deps.Analysis.Cache()
	healthHandler := handlers.NewHealthHandler(redisCheck, forecastCheck, seriesCache, deps.Version)
	dataHandler := handlers.NewDataHandler(deps.Analysis)
	analysisHandler := handlers.NewAnalysisHandler(deps.Analysis)
	cacheHandler := handlers.NewCacheHandler(deps.CacheAnalytics, seriesCache, deps.Analysis.HasAsset)

	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/data/:asset", dataHandler.GetRawSeries)

		assets := v1.Group("/assets")
		{
			assets.GET("", dataHandler.ListAssets)
			assets.GET("/:asset/aligned", dataHandler.GetAlignedSeries)
			assets.GET("/:asset/indicators", analysisHandler.GetIndicators)
			if deps.Forecasts != nil {
				forecastHandler := handlers.NewForecastHandler(deps.Forecasts)
				assets.GET("/:asset/forecast", forecastHandler.GetForecast)
			}
		}

		analysis := v1.Group("/analysis")
		{
			analysis.GET("/comparison", analysisHandler.GetComparison)
			analysis.GET("/returns", analysisHandler.GetCumulativeReturns)
			analysis.GET("/volatility", analysisHandler.GetVolatility)
			analysis.GET("/correlation", analysisHandler.GetCorrelation)
			analysis.GET("/summary", analysisHandler.GetSummary)
			analysis.GET("/performance", analysisHandler.GetPerformance)
		}

		cacheGroup := v1.Group("/cache")
		{
			cacheGroup.GET("/stats", cacheHandler.GetCacheStats)
			cacheGroup.GET("/stats/:category", cacheHandler.GetCacheStatsByCategory)
			cacheGroup.POST("/stats/reset", cacheHandler.ResetCacheStats)
			cacheGroup.POST("/invalidate", cacheHandler.Invalidate)
		}
	}
}
