// Package report writes the analysis results as flat CSV files.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-analytics/internal/models"
	"github.com/irfndi/celebrum-analytics/internal/pipeline"
)

// Output file names.
const (
	SummaryFile    = "asset_analysis_summary.csv"
	NormalizedFile = "prices_normalized.csv"
)

// SummaryHeader is the column layout of SummaryFile.
var SummaryHeader = []string{"Asset", "Annualized Return (%)", "Annualized Volatility (%)", "Sharpe Ratio"}

// normalizedPlaces is the number of decimals kept in NormalizedFile.
const normalizedPlaces = 4

// DisplayNamer maps an asset key to the label written in the files.
type DisplayNamer func(asset string) string

// Writer writes report files into one directory.
type Writer struct {
	dir    string
	names  DisplayNamer
	logger *logrus.Logger
}

// NewWriter creates a writer for dir. A nil names writes the asset keys.
func NewWriter(dir string, names DisplayNamer, logger *logrus.Logger) *Writer {
	if names == nil {
		names = func(asset string) string { return asset }
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Writer{dir: dir, names: names, logger: logger}
}

// WriteSummary writes SummaryFile and returns its path.
func (w *Writer) WriteSummary(rows []pipeline.RoundedSummary) (string, error) {
	return w.write(SummaryFile, func(out io.Writer) error {
		return WriteSummaryCSV(out, rows, w.names)
	})
}

// WriteNormalized writes NormalizedFile and returns its path.
func (w *Writer) WriteNormalized(t models.MultiAssetTable) (string, error) {
	return w.write(NormalizedFile, func(out io.Writer) error {
		return WriteTableCSV(out, t, w.names)
	})
}

// write renders into a temporary file and renames it over name, so readers
// never see a half-written report.
func (w *Writer) write(name string, render func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(w.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := render(tmp); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}

	path := filepath.Join(w.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	w.logger.WithField("path", path).Info("Report written")
	return path, nil
}

// WriteSummaryCSV writes one row per asset in the given order. Undefined
// values are left empty.
func WriteSummaryCSV(out io.Writer, rows []pipeline.RoundedSummary, names DisplayNamer) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			names(r.Asset),
			nullDecimalString(r.AnnualizedReturnPct),
			nullDecimalString(r.AnnualizedVolatilityPct),
			nullDecimalString(r.SharpeRatio),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTableCSV writes t with a leading Date column. Missing cells are empty.
func WriteTableCSV(out io.Writer, t models.MultiAssetTable, names DisplayNamer) error {
	cw := csv.NewWriter(out)
	header := make([]string, 0, len(t.Assets)+1)
	header = append(header, "Date")
	for _, a := range t.Assets {
		header = append(header, names(a))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i, d := range t.Dates {
		record[0] = d.Format(time.DateOnly)
		for j, a := range t.Assets {
			record[j+1] = floatString(t.Values[a][i])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func nullDecimalString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func floatString(v float64) string {
	if models.IsMissing(v) {
		return ""
	}
	return decimal.NewFromFloat(v).Round(normalizedPlaces).String()
}
