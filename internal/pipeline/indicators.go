package pipeline

import (
	"math"
	"time"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// IndicatorConfig holds the window lengths of every indicator.
type IndicatorConfig struct {
	// Volatility
	BBWindow int     `mapstructure:"bb_window" json:"bb_window"`
	BBStdDev float64 `mapstructure:"bb_std_dev" json:"bb_std_dev"`

	// Trend
	MACDFast   int   `mapstructure:"macd_fast" json:"macd_fast"`
	MACDSlow   int   `mapstructure:"macd_slow" json:"macd_slow"`
	MACDSignal int   `mapstructure:"macd_signal" json:"macd_signal"`
	EMASpans   []int `mapstructure:"ema_spans" json:"ema_spans"`

	// Momentum
	RSIWindow int `mapstructure:"rsi_window" json:"rsi_window"`

	// Extended
	SMAPeriods []int `mapstructure:"sma_periods" json:"sma_periods"`
	ATRPeriod  int   `mapstructure:"atr_period" json:"atr_period"`
	OBVEnabled bool  `mapstructure:"obv_enabled" json:"obv_enabled"`
}

// IndicatorOptions selects which indicators ComputeIndicators produces.
type IndicatorOptions struct {
	Bollinger bool
	MACD      bool
	RSI       bool
	EMA       bool
	Extended  bool
}

// AllIndicators turns every indicator on.
func AllIndicators() IndicatorOptions {
	return IndicatorOptions{Bollinger: true, MACD: true, RSI: true, EMA: true, Extended: true}
}

// DefaultIndicatorConfig returns the conventional indicator settings.
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		BBWindow:   20,
		BBStdDev:   2.0,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		EMASpans:   []int{50, 200},
		RSIWindow:  14,
		SMAPeriods: []int{20, 50},
		ATRPeriod:  14,
		OBVEnabled: true,
	}
}

// ComputeIndicators derives the selected indicators from the close column
// of s. The input is never modified.
func ComputeIndicators(s models.AlignedSeries, cfg IndicatorConfig, opts IndicatorOptions) models.IndicatorSet {
	closes := s.Closes()
	set := models.IndicatorSet{Asset: s.Asset, Dates: s.Dates()}

	if opts.Bollinger {
		bb := BollingerBands(closes, cfg.BBWindow, cfg.BBStdDev)
		set.Bollinger = &bb
	}
	if opts.MACD {
		macd := MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
		set.MACD = &macd
	}
	if opts.RSI {
		set.RSI = RSI(closes, cfg.RSIWindow)
		set.RSIWindow = cfg.RSIWindow
	}
	if opts.EMA {
		set.EMA = make(map[int][]float64, len(cfg.EMASpans))
		for _, span := range cfg.EMASpans {
			set.EMA[span] = EMA(closes, span)
		}
		if len(cfg.EMASpans) >= 2 {
			fast, slow := cfg.EMASpans[0], cfg.EMASpans[len(cfg.EMASpans)-1]
			set.Crossovers = Crossovers(set.Dates, set.EMA[fast], set.EMA[slow])
		}
	}
	if opts.Extended {
		set.Extended = ExtendedIndicators(s, cfg)
	}
	return set
}

// BollingerBands are the trailing mean plus and minus k sample standard
// deviations. The first window-1 positions are NaN.
func BollingerBands(prices []float64, window int, k float64) models.BollingerBands {
	mean := RollingMean(prices, window)
	std := RollingStd(prices, window)
	upper := make([]float64, len(prices))
	lower := make([]float64, len(prices))
	for i := range prices {
		upper[i] = mean[i] + k*std[i]
		lower[i] = mean[i] - k*std[i]
	}
	return models.BollingerBands{Window: window, K: k, Upper: upper, Middle: mean, Lower: lower}
}

// EMA is the exponential moving average with alpha = 2/(span+1), seeded
// with the first defined value and without bias correction, so it has a
// value from the first observation on. A NaN input gives NaN at that
// position and leaves the running average untouched.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if span < 1 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	prev := math.NaN()
	for i, v := range values {
		if models.IsMissing(v) {
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// MACD is EMA(fast) - EMA(slow) with an EMA(signal) of that line.
func MACD(prices []float64, fast, slow, signal int) models.MACD {
	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)
	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMA(line, signal)
	hist := make([]float64, len(prices))
	for i := range prices {
		hist[i] = line[i] - signalLine[i]
	}
	return models.MACD{
		Fast:      fast,
		Slow:      slow,
		SignalLen: signal,
		Line:      line,
		Signal:    signalLine,
		Histogram: hist,
	}
}

// RSI uses simple trailing means of the gains and losses of the last window
// day-over-day changes, so the first value appears at index window. An
// average loss of zero saturates at 100; an average gain of zero with
// losses gives 0.
func RSI(prices []float64, window int) []float64 {
	out := nanSlice(len(prices))
	if window < 1 || len(prices) <= window {
		return out
	}
	gains := nanSlice(len(prices))
	losses := nanSlice(len(prices))
	for i := 1; i < len(prices); i++ {
		if models.IsMissing(prices[i]) || models.IsMissing(prices[i-1]) {
			continue
		}
		delta := prices[i] - prices[i-1]
		gains[i] = math.Max(delta, 0)
		losses[i] = math.Max(-delta, 0)
	}
	avgGain := RollingMean(gains, window)
	avgLoss := RollingMean(losses, window)
	for i := window; i < len(prices); i++ {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case models.IsMissing(g) || models.IsMissing(l):
			continue
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// Crossovers lists the dates where fast moves from one side of slow to the
// other. Touching without crossing does not count.
func Crossovers(dates []time.Time, fast, slow []float64) []models.Crossover {
	var out []models.Crossover
	lastSign := 0
	for i := range dates {
		if i >= len(fast) || i >= len(slow) {
			break
		}
		if models.IsMissing(fast[i]) || models.IsMissing(slow[i]) {
			continue
		}
		sign := 0
		switch diff := fast[i] - slow[i]; {
		case diff > 0:
			sign = 1
		case diff < 0:
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if lastSign != 0 && sign != lastSign {
			kind := models.GoldenCross
			if sign < 0 {
				kind = models.DeathCross
			}
			out = append(out, models.Crossover{Date: dates[i], Kind: kind})
		}
		lastSign = sign
	}
	return out
}
