package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/irfndi/celebrum-analytics/internal/cache"
	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/pipeline"
	"github.com/irfndi/celebrum-analytics/internal/source"
	"github.com/irfndi/celebrum-analytics/internal/telemetry"
)

// AssetResult is the outcome of loading one asset. Exactly one of Series
// and Err is meaningful.
type AssetResult struct {
	Asset  string
	Series models.AlignedSeries
	Err    error
}

// Failures maps an asset key to the reason it was left out of a result.
type Failures map[string]string

// ComparisonResult is the normalized (base 100) close of every asset merged
// on the union of their dates.
type ComparisonResult struct {
	Table    models.MultiAssetTable
	Failures Failures
}

// CumulativeResult holds each asset's cumulative return path.
type CumulativeResult struct {
	Series   []models.CumulativeReturn
	Failures Failures
}

// VolatilityResult holds the rolling volatility of the merged daily returns.
type VolatilityResult struct {
	Window    int
	Annualize bool
	Table     models.MultiAssetTable
	Failures  Failures
}

// CorrelationResult holds the return correlation matrix.
type CorrelationResult struct {
	Matrix   models.CorrelationMatrix
	Failures Failures
}

// SummaryResult holds the per-asset summary, raw and rounded.
type SummaryResult struct {
	Report   pipeline.SummaryReport
	Rounded  []pipeline.RoundedSummary
	Failures Failures
}

// PerformanceResult holds the whole-period ranking.
type PerformanceResult struct {
	Report   models.PerformanceReport
	Failures Failures
}

// AnalysisService runs the alignment and metrics pipeline over the
// configured assets. Aligned series come from the SeriesCache; every other
// result is derived on demand.
type AnalysisService struct {
	config *config.Config
	source source.SeriesSource
	cache  *cache.SeriesCache
	logger *logrus.Logger
	tracer trace.Tracer

	parallel int
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(cfg *config.Config, src source.SeriesSource, seriesCache *cache.SeriesCache, logger *logrus.Logger) *AnalysisService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	parallel := cfg.Analysis.MaxParallel
	if parallel <= 0 {
		parallel = NewResourceOptimizer(ResourceOptimizerConfig{}, logger).Optimize(context.Background()).Workers
	}
	return &AnalysisService{
		config:   cfg,
		source:   src,
		cache:    seriesCache,
		logger:   logger,
		tracer:   telemetry.GetPipelineTracer(),
		parallel: parallel,
	}
}

// LoadAligned returns the cache loader: read the raw table, then align it.
func LoadAligned(src source.SeriesSource, maxRows int) cache.Loader {
	return func(ctx context.Context, key string) (models.AlignedSeries, error) {
		raw, err := loadRaw(ctx, src, key, maxRows)
		if err != nil {
			return models.AlignedSeries{}, err
		}
		return pipeline.Align(raw), nil
	}
}

func loadRaw(ctx context.Context, src source.SeriesSource, key string, maxRows int) (models.PriceSeries, error) {
	rc, err := src.Open(ctx, key)
	if err != nil {
		return models.PriceSeries{}, err
	}
	defer func() { _ = rc.Close() }()
	return pipeline.LoadCSV(rc, pipeline.LoadOptions{Asset: key, MaxRows: maxRows})
}

// Assets returns the configured asset keys in sorted order.
func (s *AnalysisService) Assets() []string {
	return s.source.Keys()
}

// HasAsset reports whether asset is configured.
func (s *AnalysisService) HasAsset(asset string) bool {
	for _, k := range s.source.Keys() {
		if k == asset {
			return true
		}
	}
	return false
}

// DisplayName returns the human-readable name of asset.
func (s *AnalysisService) DisplayName(asset string) string {
	return s.config.Data.DisplayName(asset)
}

// RawSeries returns the asset's records as read, before alignment.
func (s *AnalysisService) RawSeries(ctx context.Context, asset string) (models.PriceSeries, error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "analysis.raw_series", telemetry.StringAttribute("asset", asset))
	defer span.End()

	raw, err := loadRaw(ctx, s.source, asset, s.config.Data.MaxRows)
	telemetry.RecordError(span, err)
	return raw, err
}

// Aligned returns the asset's aligned series. A panic while loading is
// converted to an error so that one bad file cannot take the caller down.
func (s *AnalysisService) Aligned(ctx context.Context, asset string) (series models.AlignedSeries, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"asset": asset,
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Recovered panic while loading asset")
			series = models.AlignedSeries{}
			err = fmt.Errorf("asset %q: unexpected failure while loading: %v", asset, r)
		}
	}()
	return s.cache.Get(ctx, asset)
}

// LoadAll loads every requested asset (all configured assets when none are
// given) concurrently. Failures are captured per asset and never cancel the
// other loads. Results follow the order of assets; a repeated key is loaded
// once, at its first position.
func (s *AnalysisService) LoadAll(ctx context.Context, assets ...string) []AssetResult {
	if len(assets) == 0 {
		assets = s.Assets()
	}
	assets = uniqueAssets(assets)
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "analysis.load_all",
		telemetry.StringSliceAttribute("assets", assets))
	defer span.End()

	start := time.Now()
	results := make([]AssetResult, len(assets))

	var g errgroup.Group
	g.SetLimit(s.parallel)
	for i, asset := range assets {
		g.Go(func() error {
			series, err := s.Aligned(ctx, asset)
			results[i] = AssetResult{Asset: asset, Series: series, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			s.logger.WithFields(logrus.Fields{
				"asset": r.Asset,
				"error": r.Err.Error(),
			}).Warn("Asset failed to load")
		}
	}
	telemetry.SetSpanAttributes(span, telemetry.IntAttribute("failed", failed))
	s.logger.WithFields(logrus.Fields{
		"assets":      len(assets),
		"failed":      failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Loaded assets")
	return results
}

// uniqueAssets drops repeated keys, keeping the first occurrence.
func uniqueAssets(assets []string) []string {
	seen := make(map[string]struct{}, len(assets))
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// split separates loaded series from failures.
func split(results []AssetResult) ([]models.AlignedSeries, Failures) {
	series := make([]models.AlignedSeries, 0, len(results))
	failures := Failures{}
	for _, r := range results {
		if r.Err != nil {
			failures[r.Asset] = r.Err.Error()
			continue
		}
		series = append(series, r.Series)
	}
	return series, failures
}

// IndicatorConfig maps the analysis settings onto the indicator engine,
// keeping the engine defaults for anything unset.
func (s *AnalysisService) IndicatorConfig() pipeline.IndicatorConfig {
	return IndicatorConfigFrom(s.config.Analysis)
}

// IndicatorConfigFrom builds an indicator configuration from settings.
func IndicatorConfigFrom(a config.AnalysisConfig) pipeline.IndicatorConfig {
	cfg := pipeline.DefaultIndicatorConfig()
	if a.BBWindow > 0 {
		cfg.BBWindow = a.BBWindow
	}
	if a.BBStdDev > 0 {
		cfg.BBStdDev = a.BBStdDev
	}
	if a.MACDFast > 0 {
		cfg.MACDFast = a.MACDFast
	}
	if a.MACDSlow > 0 {
		cfg.MACDSlow = a.MACDSlow
	}
	if a.MACDSignal > 0 {
		cfg.MACDSignal = a.MACDSignal
	}
	if a.RSIWindow > 0 {
		cfg.RSIWindow = a.RSIWindow
	}
	if len(a.EMASpans) > 0 {
		cfg.EMASpans = append([]int(nil), a.EMASpans...)
	}
	if len(a.SMAPeriods) > 0 {
		cfg.SMAPeriods = append([]int(nil), a.SMAPeriods...)
	}
	if a.ATRPeriod > 0 {
		cfg.ATRPeriod = a.ATRPeriod
	}
	cfg.OBVEnabled = a.OBVEnabled
	return cfg
}

// Indicators computes the selected indicators for one asset.
func (s *AnalysisService) Indicators(ctx context.Context, asset string, opts pipeline.IndicatorOptions) (models.IndicatorSet, error) {
	series, err := s.Aligned(ctx, asset)
	if err != nil {
		return models.IndicatorSet{}, err
	}
	_, span := telemetry.StartSpan(ctx, s.tracer, "analysis.indicators",
		telemetry.StringAttribute("asset", asset),
		telemetry.IntAttribute("rows", series.Len()))
	defer span.End()

	return pipeline.ComputeIndicators(series, s.IndicatorConfig(), opts), nil
}

// Comparison normalizes every asset's close to 100 at its first date and
// merges the results. An asset whose first close is missing or zero is
// reported as a failure.
func (s *AnalysisService) Comparison(ctx context.Context, assets ...string) (ComparisonResult, error) {
	series, failures := split(s.LoadAll(ctx, assets...))

	normalized := make([]models.AlignedSeries, 0, len(series))
	for _, sr := range series {
		n, err := pipeline.Normalize(sr, models.ColumnClose)
		if err != nil {
			failures[sr.Asset] = err.Error()
			continue
		}
		normalized = append(normalized, n)
	}

	table, err := pipeline.Merge(normalized, models.ColumnClose)
	if err != nil {
		return ComparisonResult{}, err
	}
	return ComparisonResult{Table: table, Failures: failures}, nil
}

// CumulativeReturns computes each asset's growth of one unit from its
// aligned daily closes.
func (s *AnalysisService) CumulativeReturns(ctx context.Context, assets ...string) CumulativeResult {
	series, failures := split(s.LoadAll(ctx, assets...))

	out := make([]models.CumulativeReturn, 0, len(series))
	for _, sr := range series {
		out = append(out, pipeline.CumulativeReturnSeries(pipeline.SimpleReturnSeries(sr)))
	}
	return CumulativeResult{Series: out, Failures: failures}
}

// mergedReturns merges the aligned closes, keeps the dates every asset
// covers and converts them to daily returns.
func (s *AnalysisService) mergedReturns(ctx context.Context, assets ...string) (models.MultiAssetTable, Failures, error) {
	series, failures := split(s.LoadAll(ctx, assets...))
	prices, err := pipeline.Merge(series, models.ColumnClose)
	if err != nil {
		return models.MultiAssetTable{}, nil, err
	}
	return pipeline.ReturnsTable(pipeline.DropIncompleteRows(prices)), failures, nil
}

// RollingVolatility computes the rolling standard deviation of the merged
// daily returns. A non-positive window uses the configured one.
func (s *AnalysisService) RollingVolatility(ctx context.Context, window int, assets ...string) (VolatilityResult, error) {
	if window <= 0 {
		window = s.config.Analysis.VolatilityWindow
	}
	returns, failures, err := s.mergedReturns(ctx, assets...)
	if err != nil {
		return VolatilityResult{}, err
	}

	table := models.MultiAssetTable{
		Dates:  returns.Dates,
		Assets: returns.Assets,
		Values: make(map[string][]float64, len(returns.Assets)),
	}
	for _, a := range returns.Assets {
		table.Values[a] = pipeline.RollingVolatility(returns.Values[a], window, s.config.Analysis.Annualize)
	}
	return VolatilityResult{
		Window:    window,
		Annualize: s.config.Analysis.Annualize,
		Table:     table,
		Failures:  failures,
	}, nil
}

// Correlation computes the Pearson matrix of the merged daily returns.
func (s *AnalysisService) Correlation(ctx context.Context, assets ...string) (CorrelationResult, error) {
	returns, failures, err := s.mergedReturns(ctx, assets...)
	if err != nil {
		return CorrelationResult{}, err
	}
	return CorrelationResult{Matrix: pipeline.Correlate(returns), Failures: failures}, nil
}

// Summary annualizes each asset's returns between its own observed records,
// so interpolated calendar days do not dilute the statistics. Rows keep
// the asset order unless field is set.
func (s *AnalysisService) Summary(ctx context.Context, field pipeline.SummaryField, descending bool, assets ...string) SummaryResult {
	series, failures := split(s.LoadAll(ctx, assets...))

	report := pipeline.SummaryReport{Rows: make([]models.SummaryMetrics, 0, len(series))}
	for _, sr := range series {
		report.Rows = append(report.Rows, pipeline.Summarize(pipeline.SimpleReturnSeries(observedOnly(sr))))
	}
	if field != "" {
		report = report.SortBy(field, descending)
	}
	return SummaryResult{Report: report, Rounded: report.Rounded(), Failures: failures}
}

// Performance ranks the assets by their change over the merged period.
func (s *AnalysisService) Performance(ctx context.Context, assets ...string) (PerformanceResult, error) {
	series, failures := split(s.LoadAll(ctx, assets...))
	prices, err := pipeline.Merge(series, models.ColumnClose)
	if err != nil {
		return PerformanceResult{}, err
	}
	return PerformanceResult{Report: pipeline.Performance(prices), Failures: failures}, nil
}

// observedOnly keeps the records whose close came from the source, dropping
// synthesized days and rows whose close the aligner had to interpolate.
func observedOnly(s models.AlignedSeries) models.AlignedSeries {
	records := make([]models.PriceRecord, 0, len(s.Records))
	for _, r := range s.Records {
		if r.Observed(models.ColumnClose) {
			records = append(records, r)
		}
	}
	return models.AlignedSeries{PriceSeries: models.PriceSeries{Asset: s.Asset, Records: records}}
}

// Cache exposes the series cache for invalidation and stats.
func (s *AnalysisService) Cache() *cache.SeriesCache {
	return s.cache
}
