package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// Merge outer-joins col of every series on the union of their dates. Cells
// an asset has no record for are NaN; nothing is forward- or zero-filled.
// Column order follows the input order.
func Merge(series []models.AlignedSeries, col models.Column) (models.MultiAssetTable, error) {
	seen := make(map[string]struct{}, len(series))
	dateSet := make(map[time.Time]struct{})
	for _, s := range series {
		if _, dup := seen[s.Asset]; dup {
			return models.MultiAssetTable{}, &DuplicateAssetError{Asset: s.Asset}
		}
		seen[s.Asset] = struct{}{}
		for _, r := range s.Records {
			dateSet[models.Day(r.Date)] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	table := models.MultiAssetTable{
		Dates:  dates,
		Assets: make([]string, 0, len(series)),
		Values: make(map[string][]float64, len(series)),
	}
	for _, s := range series {
		column := make([]float64, len(dates))
		for i := range column {
			column[i] = math.NaN()
		}
		for _, r := range s.Records {
			column[row[models.Day(r.Date)]] = r.Value(col)
		}
		table.Assets = append(table.Assets, s.Asset)
		table.Values[s.Asset] = column
	}
	return table, nil
}

// DropIncompleteRows returns a table holding only the rows where every
// asset has a value.
func DropIncompleteRows(t models.MultiAssetTable) models.MultiAssetTable {
	out := models.MultiAssetTable{
		Assets: append([]string(nil), t.Assets...),
		Values: make(map[string][]float64, len(t.Assets)),
	}
	for _, a := range t.Assets {
		out.Values[a] = []float64{}
	}
	for i, d := range t.Dates {
		complete := true
		for _, a := range t.Assets {
			if models.IsMissing(t.Values[a][i]) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		out.Dates = append(out.Dates, d)
		for _, a := range t.Assets {
			out.Values[a] = append(out.Values[a], t.Values[a][i])
		}
	}
	return out
}
