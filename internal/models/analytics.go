package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// MultiAssetTable is a wide table keyed by date with one column per asset.
// Cells an asset has no observation for are NaN.
type MultiAssetTable struct {
	Dates  []time.Time
	Assets []string
	Values map[string][]float64
}

// Len returns the number of rows.
func (t MultiAssetTable) Len() int {
	return len(t.Dates)
}

// Column returns the values for asset, or nil when it is not in the table.
func (t MultiAssetTable) Column(asset string) []float64 {
	return t.Values[asset]
}

// Row returns the values of row i in t.Assets order.
func (t MultiAssetTable) Row(i int) []float64 {
	row := make([]float64, len(t.Assets))
	for j, a := range t.Assets {
		row[j] = t.Values[a][i]
	}
	return row
}

// ReturnSeries holds simple returns. Dates[i] is the date of the later price
// in the pair that produced Values[i].
type ReturnSeries struct {
	Asset  string
	Dates  []time.Time
	Values []float64
}

// CumulativeReturn holds the running product of (1 + r) seeded with 1.0.
type CumulativeReturn struct {
	Asset  string
	Dates  []time.Time
	Values []float64
}

// BollingerBands are the rolling mean and the bands k standard deviations
// around it.
type BollingerBands struct {
	Window int
	K      float64
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// MACD is the fast/slow EMA difference with its signal line.
type MACD struct {
	Fast      int
	Slow      int
	SignalLen int
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// CrossoverKind tells which way a fast EMA crossed a slow one.
type CrossoverKind string

const (
	GoldenCross CrossoverKind = "golden_cross"
	DeathCross  CrossoverKind = "death_cross"
)

// Crossover is a date on which the fast EMA crossed the slow EMA.
type Crossover struct {
	Date time.Time     `json:"date"`
	Kind CrossoverKind `json:"kind"`
}

// IndicatorSet holds the derived columns for one asset. A nil field was not
// requested; a requested indicator with too little history is all NaN.
type IndicatorSet struct {
	Asset      string
	Dates      []time.Time
	Bollinger  *BollingerBands
	MACD       *MACD
	RSI        []float64
	RSIWindow  int
	EMA        map[int][]float64
	Crossovers []Crossover
	Extended   map[string][]float64
}

// SummaryMetrics are annualized statistics of one asset's daily returns.
type SummaryMetrics struct {
	Asset                string     `json:"asset"`
	AnnualizedReturn     null.Float `json:"annualized_return"`
	AnnualizedVolatility null.Float `json:"annualized_volatility"`
	Sharpe               null.Float `json:"sharpe_ratio"`
	Observations         int        `json:"observations"`
}

// PerformanceRow is the change of one asset over the whole period.
type PerformanceRow struct {
	Asset       string     `json:"asset"`
	FirstValue  null.Float `json:"first_value"`
	LastValue   null.Float `json:"last_value"`
	Performance null.Float `json:"performance_pct"`
}

// PerformanceReport ranks assets by period performance, best first.
type PerformanceReport struct {
	Rows                []PerformanceRow `json:"rows"`
	Best                string           `json:"best,omitempty"`
	Worst               string           `json:"worst,omitempty"`
	OutperformanceRatio null.Float       `json:"outperformance_ratio"`
}

// CorrelationMatrix is a symmetric Pearson matrix in Assets order.
type CorrelationMatrix struct {
	Assets       []string
	Values       [][]float64
	Observations int
}

// Get returns the coefficient between a and b, and whether both exist.
func (m CorrelationMatrix) Get(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, name := range m.Assets {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

// Nullable wraps v so that NaN and infinities encode as JSON null.
func Nullable(v float64) null.Float {
	return null.NewFloat(v, !IsMissing(v))
}

// NullableSlice applies Nullable to every element of values.
func NullableSlice(values []float64) []null.Float {
	out := make([]null.Float, len(values))
	for i, v := range values {
		out[i] = Nullable(v)
	}
	return out
}
