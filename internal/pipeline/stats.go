package pipeline

import (
	"math"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// RollingMean is the mean over each trailing window. Positions before the
// window is full, and windows holding a NaN, are NaN.
func RollingMean(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingStd is the sample (n-1) standard deviation over each trailing
// window, with the same undefined positions as RollingMean.
func RollingStd(values []float64, window int) []float64 {
	if window < 2 {
		return nanSlice(len(values))
	}
	return rolling(values, window, sampleStd)
}

func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if anyMissing(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

// Mean averages the defined values, NaN when there are none.
func Mean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if models.IsMissing(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// SampleStd is the n-1 standard deviation of the defined values, NaN with
// fewer than two of them.
func SampleStd(values []float64) float64 {
	return sampleStd(definedValues(values))
}

func sampleStd(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Pearson is the correlation coefficient of two equally long samples
// without missing values. NaN when either sample has zero variance or
// fewer than two points.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}
	mx, my := 0.0, 0.0
	for i := 0; i < n; i++ {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r))
}

func definedValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !models.IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

func anyMissing(values []float64) bool {
	for _, v := range values {
		if models.IsMissing(v) {
			return true
		}
	}
	return false
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
