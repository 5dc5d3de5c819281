// Command report writes the asset summary and the normalized price table as
// CSV files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/irfndi/celebrum-analytics/internal/cache"
	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/logging"
	"github.com/irfndi/celebrum-analytics/internal/report"
	"github.com/irfndi/celebrum-analytics/internal/services"
	"github.com/irfndi/celebrum-analytics/internal/source"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Report failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := bindFlags(flags); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	assets, _ := flags.GetStringSlice("assets")
	paths, err := generate(context.Background(), cfg, assets, logger)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("report", pflag.ContinueOnError)
	flags.StringP("out", "o", "", "directory the CSV files are written to (report.output_dir)")
	flags.String("data-dir", "", "directory holding the asset CSV files (data.dir)")
	flags.String("log-level", "", "log level (log_level)")
	flags.StringSlice("assets", nil, "asset keys to include; all configured assets when empty")
	return flags
}

// bindFlags makes explicitly set flags override config file and environment.
func bindFlags(flags *pflag.FlagSet) error {
	for flag, key := range map[string]string{
		"out":       "report.output_dir",
		"data-dir":  "data.dir",
		"log-level": "log_level",
	} {
		if !flags.Changed(flag) {
			continue
		}
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// generate runs the summary and comparison over the assets and writes both
// report files. Assets that fail are logged and left out; it is an error
// only when none succeeds.
func generate(ctx context.Context, cfg *config.Config, assets []string, logger *logrus.Logger) ([]string, error) {
	src := source.NewFileSource(cfg.Data.Dir, cfg.Data.Assets)
	seriesCache := cache.NewSeriesCache(src, services.LoadAligned(src, cfg.Data.MaxRows), cache.Options{Logger: logger})
	analysis := services.NewAnalysisService(cfg, src, seriesCache, logger)

	summary := analysis.Summary(ctx, "", false, assets...)
	logFailures(logger, summary.Failures)
	if len(summary.Report.Rows) == 0 {
		return nil, fmt.Errorf("no asset could be analyzed")
	}

	comparison, err := analysis.Comparison(ctx, assets...)
	if err != nil {
		return nil, fmt.Errorf("failed to build normalized prices: %w", err)
	}
	for asset := range summary.Failures {
		delete(comparison.Failures, asset)
	}
	logFailures(logger, comparison.Failures)

	w := report.NewWriter(cfg.Report.OutputDir, analysis.DisplayName, logger)
	summaryPath, err := w.WriteSummary(summary.Rounded)
	if err != nil {
		return nil, err
	}
	normalizedPath, err := w.WriteNormalized(comparison.Table)
	if err != nil {
		return nil, err
	}
	return []string{summaryPath, normalizedPath}, nil
}

func logFailures(logger *logrus.Logger, failures services.Failures) {
	for asset, reason := range failures {
		logger.WithFields(logrus.Fields{
			"asset":  asset,
			"reason": reason,
		}).Warn("Asset skipped")
	}
}
