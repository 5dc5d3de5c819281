package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// SummaryField names a sortable column of the summary report.
type SummaryField string

const (
	SortByAsset      SummaryField = "asset"
	SortByReturn     SummaryField = "return"
	SortByVolatility SummaryField = "volatility"
	SortBySharpe     SummaryField = "sharpe"
)

// ParseSummaryField maps a query value to a SummaryField. Unknown values
// fall back to SortByAsset.
func ParseSummaryField(s string) (SummaryField, bool) {
	switch f := SummaryField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByAsset, SortByReturn, SortByVolatility, SortBySharpe:
		return f, true
	}
	return SortByAsset, false
}

// Summarize annualizes the daily returns of one asset. Missing returns are
// ignored. The Sharpe ratio is undefined when the volatility is zero or
// cannot be computed.
func Summarize(rs models.ReturnSeries) models.SummaryMetrics {
	defined := definedValues(rs.Values)
	ret := Mean(defined) * TradingDaysPerYear
	vol := sampleStd(defined) * math.Sqrt(TradingDaysPerYear)

	sharpe := null.Float{}
	if !models.IsMissing(ret) && !models.IsMissing(vol) && vol != 0 {
		sharpe = models.Nullable(ret / vol)
	}
	return models.SummaryMetrics{
		Asset:                rs.Asset,
		AnnualizedReturn:     models.Nullable(ret),
		AnnualizedVolatility: models.Nullable(vol),
		Sharpe:               sharpe,
		Observations:         len(defined),
	}
}

// SummaryReport holds one SummaryMetrics per asset in input order.
type SummaryReport struct {
	Rows []models.SummaryMetrics `json:"rows"`
}

// Summaries summarizes every column of a returns table.
func Summaries(returns models.MultiAssetTable) SummaryReport {
	report := SummaryReport{Rows: make([]models.SummaryMetrics, 0, len(returns.Assets))}
	for _, a := range returns.Assets {
		report.Rows = append(report.Rows, Summarize(models.ReturnSeries{
			Asset:  a,
			Dates:  returns.Dates,
			Values: returns.Values[a],
		}))
	}
	return report
}

// SortBy returns a copy of r ordered by field. Undefined values sort last in
// both directions.
func (r SummaryReport) SortBy(field SummaryField, descending bool) SummaryReport {
	rows := append([]models.SummaryMetrics(nil), r.Rows...)
	if field == SortByAsset {
		sort.SliceStable(rows, func(i, j int) bool {
			if descending {
				return rows[i].Asset > rows[j].Asset
			}
			return rows[i].Asset < rows[j].Asset
		})
		return SummaryReport{Rows: rows}
	}

	key := func(m models.SummaryMetrics) null.Float {
		switch field {
		case SortByVolatility:
			return m.AnnualizedVolatility
		case SortBySharpe:
			return m.Sharpe
		default:
			return m.AnnualizedReturn
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := key(rows[i]), key(rows[j])
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		if descending {
			return a.Float64 > b.Float64
		}
		return a.Float64 < b.Float64
	})
	return SummaryReport{Rows: rows}
}

// RoundedSummary is the presentation form of SummaryMetrics: percentages
// and the Sharpe ratio rounded to two decimal places.
type RoundedSummary struct {
	Asset                   string              `json:"asset"`
	AnnualizedReturnPct     decimal.NullDecimal `json:"annualized_return_pct"`
	AnnualizedVolatilityPct decimal.NullDecimal `json:"annualized_volatility_pct"`
	SharpeRatio             decimal.NullDecimal `json:"sharpe_ratio"`
}

// Rounded converts every row to its rounded presentation form.
func (r SummaryReport) Rounded() []RoundedSummary {
	out := make([]RoundedSummary, 0, len(r.Rows))
	for _, m := range r.Rows {
		out = append(out, RoundedSummary{
			Asset:                   m.Asset,
			AnnualizedReturnPct:     roundNull(m.AnnualizedReturn, 100),
			AnnualizedVolatilityPct: roundNull(m.AnnualizedVolatility, 100),
			SharpeRatio:             roundNull(m.Sharpe, 1),
		})
	}
	return out
}

func roundNull(v null.Float, scale float64) decimal.NullDecimal {
	if !v.Valid || models.IsMissing(v.Float64) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v.Float64).Mul(decimal.NewFromFloat(scale)).Round(2))
}

// Performance measures each column of t from its first to its last defined
// value in percent, best first. The outperformance ratio divides the best
// performance by the worst and is undefined when the worst is zero or fewer
// than two assets have a performance.
func Performance(t models.MultiAssetTable) models.PerformanceReport {
	rows := make([]models.PerformanceRow, 0, len(t.Assets))
	for _, a := range t.Assets {
		first, last := firstDefined(t.Values[a]), lastDefined(t.Values[a])
		pct := math.NaN()
		if !models.IsMissing(first) && first != 0 {
			pct = (last/first - 1) * 100
		}
		rows = append(rows, models.PerformanceRow{
			Asset:       a,
			FirstValue:  models.Nullable(first),
			LastValue:   models.Nullable(last),
			Performance: models.Nullable(pct),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Performance, rows[j].Performance
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		return a.Float64 > b.Float64
	})

	report := models.PerformanceReport{Rows: rows}
	var ranked []models.PerformanceRow
	for _, r := range rows {
		if r.Performance.Valid {
			ranked = append(ranked, r)
		}
	}
	if len(ranked) == 0 {
		return report
	}
	best, worst := ranked[0], ranked[len(ranked)-1]
	report.Best, report.Worst = best.Asset, worst.Asset
	if len(ranked) >= 2 && worst.Performance.Float64 != 0 {
		report.OutperformanceRatio = models.Nullable(best.Performance.Float64 / worst.Performance.Float64)
	}
	return report
}

func firstDefined(values []float64) float64 {
	for _, v := range values {
		if !models.IsMissing(v) {
			return v
		}
	}
	return math.NaN()
}

func lastDefined(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !models.IsMissing(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}
