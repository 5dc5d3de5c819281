package services

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/celebrum-analytics/internal/cache"
	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/pipeline"
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

type fixture struct {
	dir      string
	cfg      *config.Config
	source   *source.FileSource
	analysis *AnalysisService
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "bitcoin.csv", bitcoinCSV)
	writeFile(t, dir, "gold.csv", goldCSV)
	writeFile(t, dir, "flat.csv", flatCSV)
	writeFile(t, dir, "bad.csv", badCSV)

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
		Analysis: config.AnalysisConfig{
			VolatilityWindow: 2,
			MaxParallel:      2,
			OBVEnabled:       true,
		},
		Forecast: config.ForecastConfig{Model: config.ForecastModelHolt, Horizon: 4},
	}
	src := source.NewFileSource(dir, cfg.Data.Assets)
	seriesCache := cache.NewSeriesCache(src, LoadAligned(src, 0), cache.Options{Logger: quietLogger()})
	return &fixture{
		dir:      dir,
		cfg:      cfg,
		source:   src,
		analysis: NewAnalysisService(cfg, src, seriesCache, quietLogger()),
	}
}

func TestAnalysisService_LoadAllIsolatesFailures(t *testing.T) {
	f := newFixture(t)

	results := f.analysis.LoadAll(context.Background(), "bitcoin", "bad", "doge", "gold")
	require.Len(t, results, 4)

	assert.Equal(t, "bitcoin", results[0].Asset)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 5, results[0].Series.Len())

	assert.Equal(t, "bad", results[1].Asset)
	assert.True(t, pipeline.IsMissingColumn(results[1].Err))

	assert.Equal(t, "doge", results[2].Asset)
	assert.ErrorIs(t, results[2].Err, source.ErrUnknownAsset)

	require.NoError(t, results[3].Err)
	assert.Equal(t, 5, results[3].Series.Len())
	assert.Equal(t, 2, results[3].Series.FilledCount())
}

func TestAnalysisService_LoadAllDefaultsToEveryAsset(t *testing.T) {
	f := newFixture(t)

	results := f.analysis.LoadAll(context.Background())
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Asset
	}
	assert.Equal(t, []string{"bad", "bitcoin", "flat", "gold"}, names)
	assert.Equal(t, []string{"bad", "bitcoin", "flat", "gold"}, f.analysis.Assets())
	assert.Equal(t, "Bitcoin", f.analysis.DisplayName("bitcoin"))
}

func TestAnalysisService_LoadAllDropsRepeatedKeys(t *testing.T) {
	f := newFixture(t)

	results := f.analysis.LoadAll(context.Background(), "gold", "bitcoin", "gold", "bitcoin")
	require.Len(t, results, 2)
	assert.Equal(t, "gold", results[0].Asset)
	assert.Equal(t, "bitcoin", results[1].Asset)

	perf, err := f.analysis.Performance(context.Background(), "bitcoin", "bitcoin")
	require.NoError(t, err)
	require.Len(t, perf.Report.Rows, 1)
}

func TestAnalysisService_RawSeries(t *testing.T) {
	f := newFixture(t)

	raw, err := f.analysis.RawSeries(context.Background(), "gold")
	require.NoError(t, err)
	assert.Equal(t, 3, raw.Len())

	_, err = f.analysis.RawSeries(context.Background(), "doge")
	assert.ErrorIs(t, err, source.ErrUnknownAsset)
}

func TestAnalysisService_AlignedRecoversPanics(t *testing.T) {
	f := newFixture(t)
	panicking := cache.NewSeriesCache(f.source, func(ctx context.Context, key string) (models.AlignedSeries, error) {
		panic("corrupt state")
	}, cache.Options{Logger: quietLogger()})
	svc := NewAnalysisService(f.cfg, f.source, panicking, quietLogger())

	_, err := svc.Aligned(context.Background(), "gold")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt state")

	results := svc.LoadAll(context.Background(), "gold", "bitcoin")
	assert.Error(t, results[0].Err)
	assert.Error(t, results[1].Err)
}

func TestAnalysisService_AlignedReloadsChangedFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.analysis.Aligned(ctx, "gold")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	writeFile(t, f.dir, "gold.csv", goldCSV+"2024-01-07,58\n")
	s, err = f.analysis.Aligned(ctx, "gold")
	require.NoError(t, err)
	assert.Equal(t, 7, s.Len())
}

func TestAnalysisService_Comparison(t *testing.T) {
	f := newFixture(t)

	res, err := f.analysis.Comparison(context.Background(), "bitcoin", "gold", "bad")
	require.NoError(t, err)
	assert.Equal(t, []string{"bitcoin", "gold"}, res.Table.Assets)
	assert.Contains(t, res.Failures, "bad")
	require.Equal(t, 5, res.Table.Len())

	assert.Equal(t, 100.0, res.Table.Column("bitcoin")[0])
	assert.Equal(t, 100.0, res.Table.Column("gold")[0])
	assert.InDelta(t, 104.0, res.Table.Column("gold")[2], 1e-9)
	assert.InDelta(t, 102.0, res.Table.Column("gold")[1], 1e-9)
}

func TestAnalysisService_CumulativeReturns(t *testing.T) {
	f := newFixture(t)

	res := f.analysis.CumulativeReturns(context.Background(), "bitcoin", "doge")
	require.Len(t, res.Series, 1)
	assert.Contains(t, res.Failures, "doge")

	cum := res.Series[0]
	assert.Equal(t, "bitcoin", cum.Asset)
	require.Len(t, cum.Values, 4)
	assert.InDelta(t, 1.1, cum.Values[0], 1e-12)
	assert.InDelta(t, 1.3, cum.Values[3], 1e-12)
}

func TestAnalysisService_Summary(t *testing.T) {
	f := newFixture(t)

	res := f.analysis.Summary(context.Background(), "", false, "gold", "flat", "bitcoin")
	require.Len(t, res.Report.Rows, 3)
	assert.Equal(t, "gold", res.Report.Rows[0].Asset)

	gold := res.Report.Rows[0]
	assert.Equal(t, 2, gold.Observations)
	assert.True(t, gold.Sharpe.Valid)

	flat := res.Report.Rows[1]
	assert.Equal(t, 0.0, flat.AnnualizedReturn.Float64)
	assert.False(t, flat.Sharpe.Valid)
	assert.False(t, res.Rounded[1].SharpeRatio.Valid)

	sorted := f.analysis.Summary(context.Background(), pipeline.SortByReturn, true, "gold", "flat", "bitcoin")
	assert.Equal(t, "bitcoin", sorted.Report.Rows[0].Asset)
	assert.Equal(t, "flat", sorted.Report.Rows[2].Asset)
	assert.Empty(t, sorted.Failures)
}

// newUnreadableCloseService serves one asset whose close on 2024-01-03 is
// not a number.
func newUnreadableCloseService(t *testing.T) *AnalysisService {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "gappy.csv", `Date,Close
2024-01-01,10
2024-01-02,11
2024-01-03,x
2024-01-04,13
2024-01-05,14
`)
	cfg := &config.Config{
		Data:     config.DataConfig{Dir: dir, Assets: map[string]string{"gappy": "gappy.csv"}},
		Analysis: config.AnalysisConfig{VolatilityWindow: 2, MaxParallel: 1},
	}
	src := source.NewFileSource(dir, cfg.Data.Assets)
	seriesCache := cache.NewSeriesCache(src, LoadAligned(src, 0), cache.Options{Logger: quietLogger()})
	return NewAnalysisService(cfg, src, seriesCache, quietLogger())
}

func TestAnalysisService_SummarySkipsInterpolatedCloses(t *testing.T) {
	svc := newUnreadableCloseService(t)

	aligned, err := svc.Aligned(context.Background(), "gappy")
	require.NoError(t, err)
	assert.InDelta(t, 12.0, aligned.Records[2].Close, 1e-12)
	assert.False(t, aligned.Records[2].Filled)

	res := svc.Summary(context.Background(), "", false, "gappy")
	require.Empty(t, res.Failures)
	require.Len(t, res.Report.Rows, 1)
	// 10 -> 11 -> 13 -> 14: the interpolated 12 is not an observation.
	assert.Equal(t, 3, res.Report.Rows[0].Observations)
}

func TestAnalysisService_RollingVolatility(t *testing.T) {
	f := newFixture(t)

	res, err := f.analysis.RollingVolatility(context.Background(), 0, "bitcoin", "gold")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Window)
	assert.False(t, res.Annualize)
	require.Equal(t, 4, res.Table.Len())

	btc := res.Table.Column("bitcoin")
	assert.True(t, math.IsNaN(btc[0]))
	returns := []float64{0.1, 99.0/110 - 1}
	assert.InDelta(t, pipeline.SampleStd(returns), btc[1], 1e-12)

	res, err = f.analysis.RollingVolatility(context.Background(), 3, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Window)
}

func TestAnalysisService_Correlation(t *testing.T) {
	f := newFixture(t)

	res, err := f.analysis.Correlation(context.Background(), "bitcoin", "gold", "doge")
	require.NoError(t, err)
	assert.Contains(t, res.Failures, "doge")

	v, ok := res.Matrix.Get("bitcoin", "bitcoin")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	ab, _ := res.Matrix.Get("bitcoin", "gold")
	ba, _ := res.Matrix.Get("gold", "bitcoin")
	assert.Equal(t, ab, ba)
	assert.LessOrEqual(t, math.Abs(ab), 1.0)
}

func TestAnalysisService_Performance(t *testing.T) {
	f := newFixture(t)

	res, err := f.analysis.Performance(context.Background(), "gold", "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", res.Report.Best)
	assert.Equal(t, "gold", res.Report.Worst)
	assert.InDelta(t, 30.0, res.Report.Rows[0].Performance.Float64, 1e-9)
	assert.InDelta(t, 8.0, res.Report.Rows[1].Performance.Float64, 1e-9)
	assert.InDelta(t, 3.75, res.Report.OutperformanceRatio.Float64, 1e-9)
}

func TestAnalysisService_Indicators(t *testing.T) {
	f := newFixture(t)

	set, err := f.analysis.Indicators(context.Background(), "bitcoin", pipeline.IndicatorOptions{Bollinger: true, RSI: true})
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", set.Asset)
	assert.Len(t, set.Dates, 5)
	require.NotNil(t, set.Bollinger)
	assert.Nil(t, set.MACD)
	assert.Len(t, set.RSI, 5)

	_, err = f.analysis.Indicators(context.Background(), "bad", pipeline.AllIndicators())
	var missing *pipeline.MissingRequiredColumnError
	assert.True(t, errors.As(err, &missing))
}

func TestIndicatorConfigFrom(t *testing.T) {
	def := pipeline.DefaultIndicatorConfig()

	cfg := IndicatorConfigFrom(config.AnalysisConfig{})
	assert.Equal(t, def.BBWindow, cfg.BBWindow)
	assert.Equal(t, def.EMASpans, cfg.EMASpans)
	assert.False(t, cfg.OBVEnabled)

	cfg = IndicatorConfigFrom(config.AnalysisConfig{
		BBWindow:   10,
		BBStdDev:   1.5,
		RSIWindow:  7,
		EMASpans:   []int{5, 10},
		SMAPeriods: []int{3},
		ATRPeriod:  5,
		OBVEnabled: true,
	})
	assert.Equal(t, 10, cfg.BBWindow)
	assert.Equal(t, 1.5, cfg.BBStdDev)
	assert.Equal(t, 7, cfg.RSIWindow)
	assert.Equal(t, []int{5, 10}, cfg.EMASpans)
	assert.Equal(t, []int{3}, cfg.SMAPeriods)
	assert.Equal(t, 5, cfg.ATRPeriod)
	assert.Equal(t, def.MACDSlow, cfg.MACDSlow)
	assert.True(t, cfg.OBVEnabled)
}
