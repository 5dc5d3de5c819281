package pipeline

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/cinar/indicator/v2/volume"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// Extended indicator column names.
const (
	ExtendedATR = "atr"
	ExtendedOBV = "obv"
)

// ExtendedSMAKey names the SMA column of the given period.
func ExtendedSMAKey(period int) string {
	return fmt.Sprintf("sma_%d", period)
}

// ExtendedIndicators computes SMA, ATR and OBV with cinar/indicator. The
// channel-based indicators cannot skip gaps, so each one is only computed
// when every input column it needs is fully defined. Outputs are padded at
// the front with NaN to line up with the calendar.
func ExtendedIndicators(s models.AlignedSeries, cfg IndicatorConfig) map[string][]float64 {
	n := s.Len()
	out := make(map[string][]float64)
	closes := s.Closes()
	closesOK := n > 0 && !anyMissing(closes)

	for _, period := range cfg.SMAPeriods {
		key := ExtendedSMAKey(period)
		if !closesOK || period < 1 || n < period {
			out[key] = nanSlice(n)
			continue
		}
		sma := trend.NewSmaWithPeriod[float64](period)
		out[key] = padFront(helper.ChanToSlice(sma.Compute(helper.SliceToChan(closes))), n)
	}

	if cfg.ATRPeriod > 0 {
		highs := s.Values(models.ColumnHigh)
		lows := s.Values(models.ColumnLow)
		if closesOK && !anyMissing(highs) && !anyMissing(lows) && n > cfg.ATRPeriod {
			atr := volatility.NewAtrWithPeriod[float64](cfg.ATRPeriod)
			result := atr.Compute(
				helper.SliceToChan(highs),
				helper.SliceToChan(lows),
				helper.SliceToChan(closes),
			)
			out[ExtendedATR] = padFront(helper.ChanToSlice(result), n)
		} else {
			out[ExtendedATR] = nanSlice(n)
		}
	}

	if cfg.OBVEnabled {
		volumes := s.Values(models.ColumnVolume)
		if closesOK && !anyMissing(volumes) && n > 1 {
			obv := volume.NewObv[float64]()
			result := obv.Compute(helper.SliceToChan(closes), helper.SliceToChan(volumes))
			out[ExtendedOBV] = padFront(helper.ChanToSlice(result), n)
		} else {
			out[ExtendedOBV] = nanSlice(n)
		}
	}
	return out
}

// padFront aligns a shorter indicator output with the last n positions.
func padFront(values []float64, n int) []float64 {
	out := nanSlice(n)
	if len(values) > n {
		values = values[len(values)-n:]
	}
	copy(out[n-len(values):], values)
	return out
}
