package pipeline

import (
	"math"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// Correlate computes the Pearson matrix of the columns of t. Only rows
// where every asset has a value are used. The diagonal is exactly 1; an
// off-diagonal cell is NaN when fewer than two complete rows remain or one
// of its columns has zero variance.
func Correlate(t models.MultiAssetTable) models.CorrelationMatrix {
	complete := DropIncompleteRows(t)
	n := len(t.Assets)
	m := models.CorrelationMatrix{
		Assets:       append([]string(nil), t.Assets...),
		Values:       make([][]float64, n),
		Observations: complete.Len(),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
	}
	for i, a := range t.Assets {
		m.Values[i][i] = 1
		for j := i + 1; j < n; j++ {
			r := math.NaN()
			if complete.Len() >= 2 {
				r = Pearson(complete.Values[a], complete.Values[t.Assets[j]])
			}
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}
