package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v6"

	"github.com/irfndi/celebrum-analytics/internal/forecast"
	"github.com/irfndi/celebrum-analytics/internal/middleware"
	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/pipeline"
	"github.com/irfndi/celebrum-analytics/internal/services"
	"github.com/irfndi/celebrum-analytics/internal/source"
	"github.com/irfndi/celebrum-analytics/internal/utils"
)

// RecordResponse is one price record. Missing values are null.
type RecordResponse struct {
	Date   string     `json:"date"`
	Open   null.Float `json:"open"`
	High   null.Float `json:"high"`
	Low    null.Float `json:"low"`
	Close  null.Float `json:"close"`
	Volume null.Float `json:"volume"`
	Filled bool       `json:"filled,omitempty"`
	// Interpolated names the columns filled in by the aligner.
	Interpolated []models.Column `json:"interpolated,omitempty"`
}

// SeriesResponse is a raw or aligned series.
type SeriesResponse struct {
	Asset       string           `json:"asset"`
	DisplayName string           `json:"display_name"`
	Count       int              `json:"count"`
	FilledCount int              `json:"filled_count"`
	Records     []RecordResponse `json:"records"`
}

// TableResponse is a MultiAssetTable keyed by asset.
type TableResponse struct {
	Dates    []string                `json:"dates"`
	Assets   []string                `json:"assets"`
	Values   map[string][]null.Float `json:"values"`
	Failures services.Failures       `json:"failures"`
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = formatDate(d)
	}
	return out
}

func newSeriesResponse(s models.PriceSeries, displayName string) SeriesResponse {
	resp := SeriesResponse{
		Asset:       s.Asset,
		DisplayName: displayName,
		Count:       s.Len(),
		Records:     make([]RecordResponse, len(s.Records)),
	}
	for i, r := range s.Records {
		if r.Filled {
			resp.FilledCount++
		}
		resp.Records[i] = RecordResponse{
			Date:         formatDate(r.Date),
			Open:         models.Nullable(r.Open),
			High:         models.Nullable(r.High),
			Low:          models.Nullable(r.Low),
			Close:        models.Nullable(r.Close),
			Volume:       models.Nullable(r.Volume),
			Filled:       r.Filled,
			Interpolated: r.Interpolated.Columns(),
		}
	}
	return resp
}

func newTableResponse(t models.MultiAssetTable, failures services.Failures) TableResponse {
	resp := TableResponse{
		Dates:    formatDates(t.Dates),
		Assets:   append([]string{}, t.Assets...),
		Values:   make(map[string][]null.Float, len(t.Assets)),
		Failures: failures,
	}
	for _, a := range t.Assets {
		resp.Values[a] = models.NullableSlice(t.Values[a])
	}
	return resp
}

// isDataError reports whether err comes from the asset's data itself: an
// unreadable file or a table the loader rejected.
func isDataError(err error) bool {
	var missing *pipeline.MissingRequiredColumnError
	var malformed *pipeline.MalformedRecordError
	var undefined *pipeline.UndefinedNormalizationError
	var pathErr *fs.PathError
	return errors.As(err, &missing) ||
		errors.As(err, &malformed) ||
		errors.As(err, &undefined) ||
		errors.As(err, &pathErr) ||
		errors.Is(err, pipeline.ErrEmptySeries)
}

func isDuplicateAsset(err error) bool {
	var dup *pipeline.DuplicateAssetError
	return errors.As(err, &dup)
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, source.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, forecast.ErrInvalidHorizon), utils.IsValidationError(err), isDuplicateAsset(err):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrInsufficientHistory), isDataError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err verbatim as {"error": ...}.
func respondError(c *gin.Context, err error) {
	writeError(c, statusFor(err), err)
}

func writeError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	middleware.RecordError(c, err, status)
	c.JSON(status, gin.H{"error": err.Error()})
}

// queryBool reads a boolean query parameter, falling back to def when it
// is absent or unparsable.
func queryBool(c *gin.Context, key string, def bool) bool {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// queryInt reads an integer query parameter. ok is false when the value is
// present but not an integer.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw, present := c.GetQuery(key)
	if !present || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// assetsQuery returns the comma-separated "assets" parameter, or nil.
func assetsQuery(c *gin.Context) []string {
	var out []string
	for _, raw := range c.QueryArray("assets") {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}
