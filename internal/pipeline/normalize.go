package pipeline

import (
	"math"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// IndexBase is the value every normalized series starts at.
const IndexBase = 100.0

// Normalize rescales col so that its first value is exactly IndexBase.
// A missing or zero first value yields an UndefinedNormalizationError.
func Normalize(s models.AlignedSeries, col models.Column) (models.AlignedSeries, error) {
	if len(s.Records) == 0 {
		return models.AlignedSeries{}, ErrEmptySeries
	}
	base := s.Records[0].Value(col)
	if models.IsMissing(base) || base == 0 {
		return models.AlignedSeries{}, &UndefinedNormalizationError{Asset: s.Asset, Base: base}
	}
	return rescale(s, col, base), nil
}

// NormalizePropagate is Normalize for callers that prefer a missing marker to
// an error when the first value itself is missing: every position of col is
// NaN in that case. A zero base is still an error.
func NormalizePropagate(s models.AlignedSeries, col models.Column) (models.AlignedSeries, error) {
	if len(s.Records) > 0 && models.IsMissing(s.Records[0].Value(col)) {
		return rescale(s, col, math.NaN()), nil
	}
	return Normalize(s, col)
}

// NormalizeValues applies the same rule to a bare slice.
func NormalizeValues(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, ErrEmptySeries
	}
	base := values[0]
	if models.IsMissing(base) || base == 0 {
		return nil, &UndefinedNormalizationError{Base: base}
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / base * IndexBase
	}
	out[0] = IndexBase
	return out, nil
}

func rescale(s models.AlignedSeries, col models.Column, base float64) models.AlignedSeries {
	out := s.Clone()
	for i, r := range out.Records {
		out.Records[i] = r.WithValue(col, r.Value(col)/base*IndexBase)
	}
	if !models.IsMissing(base) {
		out.Records[0] = out.Records[0].WithValue(col, IndexBase)
	}
	return out
}
