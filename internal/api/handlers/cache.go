package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/celebrum-analytics/internal/cache"
	"github.com/irfndi/celebrum-analytics/internal/services"
	"github.com/irfndi/celebrum-analytics/internal/utils"
)

// CacheAnalyticsInterface defines the interface for cache analytics operations
type CacheAnalyticsInterface interface {
	GetStats(category string) services.CacheStats
	GetAllStats() map[string]services.CacheStats
	GetMetrics(ctx context.Context) *services.CacheMetrics
	ResetStats()
}

// SeriesCacheInterface is the part of the series cache the handler drives.
type SeriesCacheInterface interface {
	Invalidate(ctx context.Context, key string)
	InvalidateAll(ctx context.Context) int
	Stats() cache.Stats
}

// InvalidateRequest names the asset to drop. An empty asset drops all.
type InvalidateRequest struct {
	Asset string `json:"asset"`
}

// CacheHandler handles cache monitoring and invalidation endpoints
type CacheHandler struct {
	cacheAnalytics CacheAnalyticsInterface
	series         SeriesCacheInterface
	hasAsset       func(string) bool
}

// NewCacheHandler creates a new cache handler. hasAsset rejects unknown keys
// on invalidation; nil accepts every key.
func NewCacheHandler(cacheAnalytics CacheAnalyticsInterface, series SeriesCacheInterface, hasAsset func(string) bool) *CacheHandler {
	if hasAsset == nil {
		hasAsset = func(string) bool { return true }
	}
	return &CacheHandler{
		cacheAnalytics: cacheAnalytics,
		series:         series,
		hasAsset:       hasAsset,
	}
}

// GetCacheStats returns the series cache counters and hit rates per tier
// @Summary Get cache statistics
// @Description Series cache entries, loads and invalidations plus hit/miss rates per tier
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cache/stats [get]
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"series":    h.series.Stats(),
		"analytics": h.cacheAnalytics.GetMetrics(c.Request.Context()),
	})
}

// GetCacheStatsByCategory returns hit/miss statistics for one tier
// @Summary Get cache statistics by category
// @Tags cache
// @Param category path string true "Cache category (series_memory, series_redis)"
// @Produce json
// @Success 200 {object} services.CacheStats
// @Router /api/v1/cache/stats/{category} [get]
func (h *CacheHandler) GetCacheStatsByCategory(c *gin.Context) {
	category := c.Param("category")
	if category == "" {
		respondError(c, utils.NewValidationError("category", "Category parameter is required"))
		return
	}
	c.JSON(http.StatusOK, h.cacheAnalytics.GetStats(category))
}

// ResetCacheStats resets the hit/miss statistics
// @Summary Reset cache statistics
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cache/stats/reset [post]
func (h *CacheHandler) ResetCacheStats(c *gin.Context) {
	h.cacheAnalytics.ResetStats()
	c.JSON(http.StatusOK, gin.H{"message": "Cache statistics reset successfully"})
}

// Invalidate drops one asset, or every asset when none is given
// @Summary Invalidate cached series
// @Tags cache
// @Accept json
// @Param request body InvalidateRequest false "Asset to invalidate"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cache/invalidate [post]
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, utils.NewValidationErrorf("body", "invalid request body: %v", err))
		return
	}

	ctx := c.Request.Context()
	if req.Asset == "" {
		n := h.series.InvalidateAll(ctx)
		c.JSON(http.StatusOK, gin.H{"invalidated": n, "scope": "all"})
		return
	}

	if !h.hasAsset(req.Asset) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown asset: " + req.Asset})
		return
	}
	h.series.Invalidate(ctx, req.Asset)
	c.JSON(http.StatusOK, gin.H{"invalidated": 1, "scope": req.Asset})
}
