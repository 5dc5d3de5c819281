package pipeline

import (
	"math"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// TradingDaysPerYear scales daily statistics to yearly ones.
const TradingDaysPerYear = 252

// SimpleReturns computes p[i]/p[i-1] - 1 for i >= 1. The result has one
// fewer element than prices; any pair with a missing or zero denominator
// yields NaN.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if models.IsMissing(prev) || models.IsMissing(cur) || prev == 0 {
			out[i-1] = math.NaN()
			continue
		}
		out[i-1] = cur/prev - 1
	}
	return out
}

// SimpleReturnSeries computes the close-to-close returns of s.
func SimpleReturnSeries(s models.AlignedSeries) models.ReturnSeries {
	dates := s.Dates()
	rs := models.ReturnSeries{Asset: s.Asset, Values: SimpleReturns(s.Closes())}
	if len(dates) > 1 {
		rs.Dates = dates[1:]
	}
	return rs
}

// ReturnsTable computes simple returns column by column. The first row of
// t has no return and is dropped.
func ReturnsTable(t models.MultiAssetTable) models.MultiAssetTable {
	out := models.MultiAssetTable{
		Assets: append([]string(nil), t.Assets...),
		Values: make(map[string][]float64, len(t.Assets)),
	}
	if len(t.Dates) > 1 {
		out.Dates = append(out.Dates, t.Dates[1:]...)
	}
	for _, a := range t.Assets {
		out.Values[a] = SimpleReturns(t.Values[a])
	}
	return out
}

// CumulativeReturns is the running product of (1 + r) seeded with 1.0.
// A missing return is NaN at its own index; the product skips it and
// carries on from the last valid value with the next valid return.
func CumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	product := 1.0
	for i, r := range returns {
		if models.IsMissing(r) {
			out[i] = math.NaN()
			continue
		}
		product *= 1 + r
		out[i] = product
	}
	return out
}

// CumulativeReturnSeries applies CumulativeReturns to rs.
func CumulativeReturnSeries(rs models.ReturnSeries) models.CumulativeReturn {
	return models.CumulativeReturn{
		Asset:  rs.Asset,
		Dates:  rs.Dates,
		Values: CumulativeReturns(rs.Values),
	}
}

// TotalReturn is the last valid cumulative product minus one, NaN when no
// return was valid.
func TotalReturn(cumulative []float64) float64 {
	for i := len(cumulative) - 1; i >= 0; i-- {
		if !models.IsMissing(cumulative[i]) {
			return cumulative[i] - 1
		}
	}
	return math.NaN()
}

// ReconstructPrices rebuilds a price path from base and cumulative growth
// factors. The result is one element longer than cumulative.
func ReconstructPrices(base float64, cumulative []float64) []float64 {
	out := make([]float64, len(cumulative)+1)
	out[0] = base
	for i, c := range cumulative {
		out[i+1] = base * c
	}
	return out
}

// RollingVolatility is the sample standard deviation of returns over the
// trailing window, multiplied by sqrt(252) when annualize is set. The first
// window-1 positions, and any window holding a NaN, are NaN.
func RollingVolatility(returns []float64, window int, annualize bool) []float64 {
	out := RollingStd(returns, window)
	if annualize {
		scale := math.Sqrt(TradingDaysPerYear)
		for i, v := range out {
			out[i] = v * scale
		}
	}
	return out
}
