package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

func TestNormalize_FirstValueIsBase(t *testing.T) {
	s := dailySeries("GOLD", 1950.3, 1975.1, 1901.7)
	out, err := Normalize(s, models.ColumnClose)
	require.NoError(t, err)

	closes := out.Closes()
	assert.Equal(t, 100.0, closes[0])
	assert.InDelta(t, 1975.1/1950.3*100, closes[1], 1e-9)
	assert.InDelta(t, 1901.7/1950.3*100, closes[2], 1e-9)

	// input untouched
	assert.Equal(t, 1950.3, s.Closes()[0])
}

func TestNormalize_UndefinedBase(t *testing.T) {
	for name, s := range map[string]models.AlignedSeries{
		"zero":    dailySeries("X", 0, 1, 2),
		"missing": dailySeries("X", math.NaN(), 1, 2),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(s, models.ColumnClose)
			var normErr *UndefinedNormalizationError
			require.True(t, errors.As(err, &normErr))
			assert.Equal(t, "X", normErr.Asset)
		})
	}

	_, err := Normalize(models.AlignedSeries{}, models.ColumnClose)
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestNormalizePropagate(t *testing.T) {
	out, err := NormalizePropagate(dailySeries("X", math.NaN(), 1, 2), models.ColumnClose)
	require.NoError(t, err)
	for _, v := range out.Closes() {
		assert.True(t, math.IsNaN(v))
	}

	_, err = NormalizePropagate(dailySeries("X", 0, 1), models.ColumnClose)
	assert.True(t, IsUndefinedNormalization(err))
}

func TestNormalizeValues(t *testing.T) {
	out, err := NormalizeValues([]float64{50, 75, 25})
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 150, 50}, out)
}
