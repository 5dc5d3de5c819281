package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v6"

	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/pipeline"
	"github.com/irfndi/celebrum-analytics/internal/services"
	"github.com/irfndi/celebrum-analytics/internal/utils"
)

// BollingerResponse is the JSON form of models.BollingerBands.
type BollingerResponse struct {
	Window int          `json:"window"`
	K      float64      `json:"k"`
	Upper  []null.Float `json:"upper"`
	Middle []null.Float `json:"middle"`
	Lower  []null.Float `json:"lower"`
}

// MACDResponse is the JSON form of models.MACD.
type MACDResponse struct {
	Fast      int          `json:"fast"`
	Slow      int          `json:"slow"`
	SignalLen int          `json:"signal_len"`
	Line      []null.Float `json:"line"`
	Signal    []null.Float `json:"signal"`
	Histogram []null.Float `json:"histogram"`
}

// RSIResponse is the RSI column with its window.
type RSIResponse struct {
	Window int          `json:"window"`
	Values []null.Float `json:"values"`
}

// IndicatorResponse is the JSON form of models.IndicatorSet.
type IndicatorResponse struct {
	Asset      string                  `json:"asset"`
	Dates      []string                `json:"dates"`
	Bollinger  *BollingerResponse      `json:"bollinger,omitempty"`
	MACD       *MACDResponse           `json:"macd,omitempty"`
	RSI        *RSIResponse            `json:"rsi,omitempty"`
	EMA        map[string][]null.Float `json:"ema,omitempty"`
	Crossovers []CrossoverResponse     `json:"crossovers,omitempty"`
	Extended   map[string][]null.Float `json:"extended,omitempty"`
}

// CrossoverResponse is one EMA crossover.
type CrossoverResponse struct {
	Date string               `json:"date"`
	Kind models.CrossoverKind `json:"kind"`
}

// CumulativeSeriesResponse is one asset's cumulative return path.
type CumulativeSeriesResponse struct {
	Asset       string       `json:"asset"`
	Dates       []string     `json:"dates"`
	Values      []null.Float `json:"values"`
	TotalReturn null.Float   `json:"total_return"`
}

// CorrelationResponse is the JSON form of models.CorrelationMatrix.
type CorrelationResponse struct {
	Assets       []string          `json:"assets"`
	Matrix       [][]null.Float    `json:"matrix"`
	Observations int               `json:"observations"`
	Failures     services.Failures `json:"failures"`
}

// AnalysisHandler serves indicators and cross-asset analytics.
type AnalysisHandler struct {
	analysis *services.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysis *services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis}
}

// GetIndicators returns the technical indicators of one asset. Every
// indicator is on unless its flag is false.
// @Summary Technical indicators
// @Tags analysis
// @Param asset path string true "Asset key"
// @Param bb query bool false "Bollinger bands"
// @Param macd query bool false "MACD"
// @Param rsi query bool false "RSI"
// @Param ema query bool false "EMA spans and crossovers"
// @Param extended query bool false "SMA, ATR and OBV"
// @Produce json
// @Success 200 {object} IndicatorResponse
// @Router /api/v1/assets/{asset}/indicators [get]
func (h *AnalysisHandler) GetIndicators(c *gin.Context) {
	opts := pipeline.IndicatorOptions{
		Bollinger: queryBool(c, "bb", true),
		MACD:      queryBool(c, "macd", true),
		RSI:       queryBool(c, "rsi", true),
		EMA:       queryBool(c, "ema", true),
		Extended:  queryBool(c, "extended", true),
	}

	set, err := h.analysis.Indicators(c.Request.Context(), c.Param("asset"), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newIndicatorResponse(set))
}

func newIndicatorResponse(set models.IndicatorSet) IndicatorResponse {
	resp := IndicatorResponse{
		Asset: set.Asset,
		Dates: formatDates(set.Dates),
	}
	if b := set.Bollinger; b != nil {
		resp.Bollinger = &BollingerResponse{
			Window: b.Window,
			K:      b.K,
			Upper:  models.NullableSlice(b.Upper),
			Middle: models.NullableSlice(b.Middle),
			Lower:  models.NullableSlice(b.Lower),
		}
	}
	if m := set.MACD; m != nil {
		resp.MACD = &MACDResponse{
			Fast:      m.Fast,
			Slow:      m.Slow,
			SignalLen: m.SignalLen,
			Line:      models.NullableSlice(m.Line),
			Signal:    models.NullableSlice(m.Signal),
			Histogram: models.NullableSlice(m.Histogram),
		}
	}
	if set.RSI != nil {
		resp.RSI = &RSIResponse{Window: set.RSIWindow, Values: models.NullableSlice(set.RSI)}
	}
	if set.EMA != nil {
		resp.EMA = make(map[string][]null.Float, len(set.EMA))
		for span, values := range set.EMA {
			resp.EMA[strconv.Itoa(span)] = models.NullableSlice(values)
		}
		resp.Crossovers = make([]CrossoverResponse, 0, len(set.Crossovers))
		for _, x := range set.Crossovers {
			resp.Crossovers = append(resp.Crossovers, CrossoverResponse{Date: formatDate(x.Date), Kind: x.Kind})
		}
	}
	if set.Extended != nil {
		resp.Extended = make(map[string][]null.Float, len(set.Extended))
		for name, values := range set.Extended {
			resp.Extended[name] = models.NullableSlice(values)
		}
	}
	return resp
}

// GetComparison returns every asset's close normalized to 100
// @Summary Normalized price comparison
// @Tags analysis
// @Param assets query string false "Comma-separated asset keys"
// @Produce json
// @Success 200 {object} TableResponse
// @Router /api/v1/analysis/comparison [get]
func (h *AnalysisHandler) GetComparison(c *gin.Context) {
	result, err := h.analysis.Comparison(c.Request.Context(), assetsQuery(c)...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTableResponse(result.Table, result.Failures))
}

// GetCumulativeReturns returns each asset's cumulative return path
// @Summary Cumulative returns
// @Tags analysis
// @Param assets query string false "Comma-separated asset keys"
// @Produce json
// @Router /api/v1/analysis/returns [get]
func (h *AnalysisHandler) GetCumulativeReturns(c *gin.Context) {
	result := h.analysis.CumulativeReturns(c.Request.Context(), assetsQuery(c)...)

	series := make([]CumulativeSeriesResponse, 0, len(result.Series))
	for _, cr := range result.Series {
		series = append(series, CumulativeSeriesResponse{
			Asset:       cr.Asset,
			Dates:       formatDates(cr.Dates),
			Values:      models.NullableSlice(cr.Values),
			TotalReturn: models.Nullable(pipeline.TotalReturn(cr.Values)),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"series":   series,
		"failures": result.Failures,
	})
}

// GetVolatility returns the rolling volatility of daily returns
// @Summary Rolling volatility
// @Tags analysis
// @Param window query int false "Window length in days"
// @Param assets query string false "Comma-separated asset keys"
// @Produce json
// @Router /api/v1/analysis/volatility [get]
func (h *AnalysisHandler) GetVolatility(c *gin.Context) {
	window, ok := queryInt(c, "window", 0)
	if !ok || window < 0 {
		respondError(c, utils.NewValidationError("window", "window must be a positive integer"))
		return
	}

	result, err := h.analysis.RollingVolatility(c.Request.Context(), window, assetsQuery(c)...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"window":     result.Window,
		"annualized": result.Annualize,
		"table":      newTableResponse(result.Table, nil),
		"failures":   result.Failures,
	})
}

// GetCorrelation returns the correlation matrix of daily returns
// @Summary Return correlation
// @Tags analysis
// @Param assets query string false "Comma-separated asset keys"
// @Produce json
// @Success 200 {object} CorrelationResponse
// @Router /api/v1/analysis/correlation [get]
func (h *AnalysisHandler) GetCorrelation(c *gin.Context) {
	result, err := h.analysis.Correlation(c.Request.Context(), assetsQuery(c)...)
	if err != nil {
		respondError(c, err)
		return
	}

	matrix := make([][]null.Float, len(result.Matrix.Values))
	for i, row := range result.Matrix.Values {
		matrix[i] = models.NullableSlice(row)
	}
	c.JSON(http.StatusOK, CorrelationResponse{
		Assets:       result.Matrix.Assets,
		Matrix:       matrix,
		Observations: result.Matrix.Observations,
		Failures:     result.Failures,
	})
}

// GetSummary returns annualized return, volatility and Sharpe ratio per
// asset. Without sort the rows follow the asset order.
// @Summary Summary statistics
// @Tags analysis
// @Param sort query string false "asset, return, volatility or sharpe"
// @Param order query string false "asc or desc"
// @Param assets query string false "Comma-separated asset keys"
// @Produce json
// @Router /api/v1/analysis/summary [get]
func (h *AnalysisHandler) GetSummary(c *gin.Context) {
	var field pipeline.SummaryField
	if raw := c.Query("sort"); raw != "" {
		f, ok := pipeline.ParseSummaryField(raw)
		if !ok {
			respondError(c, utils.NewValidationErrorf("sort", "unknown sort field: %s", raw))
			return
		}
		field = f
	}
	descending := strings.EqualFold(c.Query("order"), "desc")

	result := h.analysis.Summary(c.Request.Context(), field, descending, assetsQuery(c)...)
	c.JSON(http.StatusOK, gin.H{
		"rows":     result.Report.Rows,
		"rounded":  result.Rounded,
		"failures": result.Failures,
	})
}

// GetPerformance ranks assets by their change over the period
// @Summary Period performance
// @Tags analysis
// @Param assets query string false "Comma-separated asset keys"
// @Produce json
// @Router /api/v1/analysis/performance [get]
func (h *AnalysisHandler) GetPerformance(c *gin.Context) {
	result, err := h.analysis.Performance(c.Request.Context(), assetsQuery(c)...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":                 result.Report.Rows,
		"best":                 result.Report.Best,
		"worst":                result.Report.Worst,
		"outperformance_ratio": result.Report.OutperformanceRatio,
		"failures":             result.Failures,
	})
}
