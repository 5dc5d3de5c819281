package pipeline

import (
	"time"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

const day = 24 * time.Hour

// Align reindexes s onto a gapless daily calendar spanning its first and last
// date. Each numeric column is linearly interpolated between its nearest
// known values; positions outside a column's known range stay NaN. Observed
// values are copied through untouched and every interpolated value is marked
// in its record's Interpolated set.
func Align(s models.PriceSeries) models.AlignedSeries {
	if len(s.Records) == 0 {
		return models.AlignedSeries{PriceSeries: models.PriceSeries{Asset: s.Asset}}
	}

	first := models.Day(s.Records[0].Date)
	last := models.Day(s.Records[len(s.Records)-1].Date)
	n := DaysBetween(first, last) + 1

	grid := make([]models.PriceRecord, n)
	observed := make([]bool, n)
	for i := range grid {
		grid[i] = models.EmptyRecord(first.Add(time.Duration(i) * day))
	}
	for _, r := range s.Records {
		pos := DaysBetween(first, models.Day(r.Date))
		if pos < 0 || pos >= n {
			continue
		}
		rec := r
		rec.Date = grid[pos].Date
		rec.Filled = false
		rec.Interpolated = 0
		grid[pos] = rec
		observed[pos] = true
	}
	for i := range grid {
		grid[i].Filled = !observed[i]
	}

	for _, col := range models.NumericColumns {
		values := make([]float64, n)
		for i, r := range grid {
			values[i] = r.Value(col)
		}
		filled := Interpolate(values)
		for i := range grid {
			if models.IsMissing(values[i]) && !models.IsMissing(filled[i]) {
				grid[i].Interpolated = grid[i].Interpolated.With(col)
			}
			grid[i] = grid[i].WithValue(col, filled[i])
		}
	}

	return models.AlignedSeries{PriceSeries: models.PriceSeries{Asset: s.Asset, Records: grid}}
}

// Interpolate returns a copy of values with interior NaN runs filled by
// straight lines between the bounding known values. Leading and trailing
// NaN runs are left as they are, as is any slice with fewer than two known
// values.
func Interpolate(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)

	prev := -1
	for i, v := range out {
		if models.IsMissing(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			lo, hi := out[prev], v
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				out[j] = lo + (hi-lo)*float64(j-prev)/span
			}
		}
		prev = i
	}
	return out
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(models.Day(b).Sub(models.Day(a)) / day)
}

// CalendarRange lists every calendar day from first to last inclusive.
func CalendarRange(first, last time.Time) []time.Time {
	first, last = models.Day(first), models.Day(last)
	if last.Before(first) {
		return nil
	}
	n := DaysBetween(first, last) + 1
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = first.Add(time.Duration(i) * day)
	}
	return dates
}
