package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/celebrum-analytics/internal/services"
)

// AssetInfo describes one configured asset.
type AssetInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Cached      bool   `json:"cached"`
}

// DataHandler serves the raw and aligned price series.
type DataHandler struct {
	analysis *services.AnalysisService
}

// NewDataHandler creates a new data handler
func NewDataHandler(analysis *services.AnalysisService) *DataHandler {
	return &DataHandler{analysis: analysis}
}

// ListAssets returns the configured assets
// @Summary List assets
// @Tags data
// @Produce json
// @Success 200 {array} AssetInfo
// @Router /api/v1/assets [get]
func (h *DataHandler) ListAssets(c *gin.Context) {
	keys := h.analysis.Assets()
	assets := make([]AssetInfo, 0, len(keys))
	for _, k := range keys {
		assets = append(assets, AssetInfo{
			Key:         k,
			DisplayName: h.analysis.DisplayName(k),
			Cached:      h.analysis.Cache().Cached(k),
		})
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

// GetRawSeries returns an asset's records as stored
// @Summary Raw price series
// @Tags data
// @Param asset path string true "Asset key"
// @Produce json
// @Success 200 {object} SeriesResponse
// @Router /api/v1/data/{asset} [get]
func (h *DataHandler) GetRawSeries(c *gin.Context) {
	asset := c.Param("asset")
	series, err := h.analysis.RawSeries(c.Request.Context(), asset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSeriesResponse(series, h.analysis.DisplayName(asset)))
}

// GetAlignedSeries returns an asset's gap-filled daily series
// @Summary Aligned price series
// @Tags data
// @Param asset path string true "Asset key"
// @Produce json
// @Success 200 {object} SeriesResponse
// @Router /api/v1/assets/{asset}/aligned [get]
func (h *DataHandler) GetAlignedSeries(c *gin.Context) {
	asset := c.Param("asset")
	series, err := h.analysis.Aligned(c.Request.Context(), asset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSeriesResponse(series.PriceSeries, h.analysis.DisplayName(asset)))
}
