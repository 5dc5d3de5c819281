package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/irfndi/celebrum-analytics/internal/models"
)

// Header names understood by the loader, compared after lowercasing.
const (
	headerDate     = "date"
	headerOpen     = "open"
	headerHigh     = "high"
	headerLow      = "low"
	headerClose    = "close"
	headerAdjClose = "adj close"
	headerVolume   = "volume"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"01/02/2006",
}

// LoadOptions tunes LoadCSV.
type LoadOptions struct {
	// Asset is the key attached to the series and to every error.
	Asset string
	// MaxRows stops reading after this many data rows when positive.
	MaxRows int
}

// LoadCSV reads one asset's raw price table. Adj Close is preferred over
// Close; non-numeric cells become NaN. Rows are returned sorted by date with
// duplicate dates collapsed to the last row seen.
func LoadCSV(r io.Reader, opts LoadOptions) (models.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return models.PriceSeries{}, &MissingRequiredColumnError{Asset: opts.Asset, Column: "Date"}
	}
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("asset %q: failed to read header: %w", opts.Asset, err)
	}

	idx := indexHeader(header)
	dateIdx, ok := idx[headerDate]
	if !ok {
		return models.PriceSeries{}, &MissingRequiredColumnError{Asset: opts.Asset, Column: "Date"}
	}
	closeIdx, ok := idx[headerAdjClose]
	if !ok {
		closeIdx, ok = idx[headerClose]
	}
	if !ok {
		return models.PriceSeries{}, &MissingRequiredColumnError{Asset: opts.Asset, Column: "Adj Close"}
	}

	var records []models.PriceRecord
	row := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return models.PriceSeries{}, &MalformedRecordError{Asset: opts.Asset, Row: row, Reason: err.Error()}
		}
		if opts.MaxRows > 0 && len(records) >= opts.MaxRows {
			break
		}

		raw := cell(fields, dateIdx)
		if raw == "" {
			continue
		}
		date, err := ParseDate(raw)
		if err != nil {
			return models.PriceSeries{}, &MalformedRecordError{Asset: opts.Asset, Row: row, Reason: err.Error()}
		}

		records = append(records, models.PriceRecord{
			Date:   date,
			Open:   numericCell(fields, idx, headerOpen),
			High:   numericCell(fields, idx, headerHigh),
			Low:    numericCell(fields, idx, headerLow),
			Close:  ParseNumber(cell(fields, closeIdx)),
			Volume: numericCell(fields, idx, headerVolume),
		})
	}

	return models.PriceSeries{Asset: opts.Asset, Records: dedupeSorted(records)}, nil
}

// ParseDate accepts the date layouts seen in exported price files and drops
// any time of day.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// ParseNumber coerces a cell to float64. Anything unparseable is NaN.
func ParseNumber(raw string) float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		key = strings.Join(strings.Fields(strings.ReplaceAll(key, "_", " ")), " ")
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

func cell(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func numericCell(fields []string, idx map[string]int, name string) float64 {
	i, ok := idx[name]
	if !ok {
		return math.NaN()
	}
	return ParseNumber(cell(fields, i))
}

func dedupeSorted(records []models.PriceRecord) []models.PriceRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	out := records[:0]
	for _, r := range records {
		if n := len(out); n > 0 && out[n-1].Date.Equal(r.Date) {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}
