package models

import (
	"math"
	"time"
)

// Column identifies one numeric field of a PriceRecord.
type Column string

const (
	ColumnOpen   Column = "open"
	ColumnHigh   Column = "high"
	ColumnLow    Column = "low"
	ColumnClose  Column = "close"
	ColumnVolume Column = "volume"
)

// NumericColumns lists every numeric column in record order.
var NumericColumns = []Column{ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume}

// ColumnSet is a bit set of numeric columns.
type ColumnSet uint16

func columnBit(col Column) ColumnSet {
	for i, c := range NumericColumns {
		if c == col {
			return 1 << i
		}
	}
	return 0
}

// Has reports whether col is in the set.
func (s ColumnSet) Has(col Column) bool {
	bit := columnBit(col)
	return bit != 0 && s&bit != 0
}

// With returns the set plus col.
func (s ColumnSet) With(col Column) ColumnSet {
	return s | columnBit(col)
}

// Columns lists the members in record order.
func (s ColumnSet) Columns() []Column {
	var cols []Column
	for _, c := range NumericColumns {
		if s.Has(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// PriceRecord is one daily observation. Missing values are NaN.
// Close carries the adjusted close when the source provides one.
type PriceRecord struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	// Filled is set on records synthesized by the calendar aligner.
	Filled bool
	// Interpolated holds the columns the aligner filled in. On an observed
	// record these are values the source left missing.
	Interpolated ColumnSet
}

// Value returns the value stored in col.
func (r PriceRecord) Value(col Column) float64 {
	switch col {
	case ColumnOpen:
		return r.Open
	case ColumnHigh:
		return r.High
	case ColumnLow:
		return r.Low
	case ColumnClose:
		return r.Close
	case ColumnVolume:
		return r.Volume
	default:
		return math.NaN()
	}
}

// WithValue returns a copy of r with col set to v.
func (r PriceRecord) WithValue(col Column, v float64) PriceRecord {
	switch col {
	case ColumnOpen:
		r.Open = v
	case ColumnHigh:
		r.High = v
	case ColumnLow:
		r.Low = v
	case ColumnClose:
		r.Close = v
	case ColumnVolume:
		r.Volume = v
	}
	return r
}

// Observed reports whether col holds a value read from the source.
func (r PriceRecord) Observed(col Column) bool {
	return !r.Filled && !r.Interpolated.Has(col) && !IsMissing(r.Value(col))
}

// EmptyRecord returns a record for date with every numeric field missing.
func EmptyRecord(date time.Time) PriceRecord {
	nan := math.NaN()
	return PriceRecord{Date: date, Open: nan, High: nan, Low: nan, Close: nan, Volume: nan}
}

// PriceSeries is one asset's records in strictly ascending date order.
type PriceSeries struct {
	Asset   string
	Records []PriceRecord
}

// Len returns the number of records.
func (s PriceSeries) Len() int {
	return len(s.Records)
}

// Dates returns the date axis of the series.
func (s PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Records))
	for i, r := range s.Records {
		dates[i] = r.Date
	}
	return dates
}

// Values returns a fresh slice holding col for every record.
func (s PriceSeries) Values(col Column) []float64 {
	values := make([]float64, len(s.Records))
	for i, r := range s.Records {
		values[i] = r.Value(col)
	}
	return values
}

// Closes is shorthand for Values(ColumnClose).
func (s PriceSeries) Closes() []float64 {
	return s.Values(ColumnClose)
}

// Clone returns a deep copy so callers can hand out series without sharing
// the backing array.
func (s PriceSeries) Clone() PriceSeries {
	records := make([]PriceRecord, len(s.Records))
	copy(records, s.Records)
	return PriceSeries{Asset: s.Asset, Records: records}
}

// FirstDate returns the first date, or the zero time for an empty series.
func (s PriceSeries) FirstDate() time.Time {
	if len(s.Records) == 0 {
		return time.Time{}
	}
	return s.Records[0].Date
}

// LastDate returns the last date, or the zero time for an empty series.
func (s PriceSeries) LastDate() time.Time {
	if len(s.Records) == 0 {
		return time.Time{}
	}
	return s.Records[len(s.Records)-1].Date
}

// AlignedSeries is a PriceSeries with exactly one record per calendar day
// between its first and last date.
type AlignedSeries struct {
	PriceSeries
}

// Clone returns a deep copy of the aligned series.
func (s AlignedSeries) Clone() AlignedSeries {
	return AlignedSeries{PriceSeries: s.PriceSeries.Clone()}
}

// FilledCount returns how many records were synthesized by interpolation.
func (s AlignedSeries) FilledCount() int {
	n := 0
	for _, r := range s.Records {
		if r.Filled {
			n++
		}
	}
	return n
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsMissing reports whether v represents a missing value.
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Missing returns the marker used for missing values.
func Missing() float64 {
	return math.NaN()
}
