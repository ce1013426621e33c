package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"sgscollector/internal/config"
	"sgscollector/internal/logging"
	"sgscollector/internal/model"
	"sgscollector/internal/providers/sgs"
	"sgscollector/internal/store"
	"sgscollector/internal/store/excel"
	"sgscollector/internal/store/sqlite"
	"sgscollector/internal/transform"
)

const cliDateLayout = "2006-01-02"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	from := fs.String("from", "", "start date (YYYY-MM-DD)")
	to := fs.String("to", "", "end date (YYYY-MM-DD, default today)")
	daysBack := fs.Int("days-back", 0, "days to look back when -from is not set (0 = config default)")
	configPath := fs.String("config", "configs/series.yaml", "series config YAML path")
	outputPath := fs.String("output", "data/output/indicators.xlsx", "output workbook path")
	dbPath := fs.String("db", "", "optional sqlite mirror path (empty disables)")
	verbose := fs.Bool("verbose", false, "debug-level logging")
	fs.Parse(args)

	if err := runCollector(*from, *to, *daysBack, *configPath, *outputPath, *dbPath, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "collector run failed:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: collector run [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -from       start date YYYY-MM-DD (default: -days-back before -to)")
	fmt.Fprintln(os.Stderr, "  -to         end date YYYY-MM-DD (default: today)")
	fmt.Fprintln(os.Stderr, "  -days-back  lookback days when -from is unset (default: from config)")
	fmt.Fprintln(os.Stderr, "  -config     series config YAML (default: configs/series.yaml)")
	fmt.Fprintln(os.Stderr, "  -output     output workbook (default: data/output/indicators.xlsx)")
	fmt.Fprintln(os.Stderr, "  -db         optional sqlite mirror path")
	fmt.Fprintln(os.Stderr, "  -verbose    debug-level logging")
}

func runCollector(fromArg, toArg string, daysBack int, configPath, outputPath, dbPath string, verbose bool) error {
	from, err := parseDate(fromArg)
	if err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	to, err := parseDate(toArg)
	if err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dateFrom, dateTo := resolveDateRange(from, to, daysBack, cfg.Settings.DaysBackDefault)

	logger, closeLog, err := logging.New(filepath.Join(filepath.Dir(outputPath), "run.log"))
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer closeLog()
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	sgsCfg, err := sgs.ConfigFromEnv()
	if err != nil {
		return err
	}
	sgsCfg.Timeout = cfg.Timeout()
	sgsCfg.MaxRetries = cfg.Settings.RetryAttempts
	provider, err := sgs.NewWithConfig(sgsCfg)
	if err != nil {
		return err
	}

	workbook, err := excel.New(outputPath)
	if err != nil {
		return err
	}

	var mirror store.Store = &store.NopStore{}
	if dbPath != "" {
		mirror, err = sqlite.New(dbPath)
		if err != nil {
			return err
		}
	}
	defer mirror.Close()

	logger.Info().
		Str("from", dateFrom.Format(cliDateLayout)).
		Str("to", dateTo.Format(cliDateLayout)).
		Int("series", len(cfg.Series)).
		Msg("starting SGS collection")

	ctx := context.Background()
	tables := make([][]model.Observation, 0, len(cfg.Series))
	seriesOK := 0
	lastErr := ""

	for _, spec := range cfg.SeriesSpecs() {
		logger.Info().Int("code", spec.Code).Str("name", spec.Name).Msg("fetching series")

		raw, err := provider.FetchSeries(ctx, spec.Code, dateFrom, dateTo)
		if err != nil {
			logger.Error().Err(err).Int("code", spec.Code).Msg("series fetch failed")
			lastErr = err.Error()
			continue
		}

		table, err := transform.Normalize(raw, spec)
		if err != nil {
			logger.Error().Err(err).Int("code", spec.Code).Msg("series normalization failed")
			lastErr = err.Error()
			continue
		}

		logger.Debug().Int("code", spec.Code).Int("rows", len(table)).Msg("series normalized")
		tables = append(tables, table)
		seriesOK++
	}

	combined := transform.Combine(tables...)

	existing, err := workbook.ReadData()
	if err != nil {
		return err
	}
	merged, added := transform.Merge(existing, combined)

	stats := transform.Summarize(merged)
	if stats.DuplicateKeys > 0 {
		// A duplicate key after Merge is a pipeline defect. Stop before
		// touching the store.
		return fmt.Errorf("merged table has %d duplicate (date, series) keys", stats.DuplicateKeys)
	}
	logQuality(logger, stats)

	status := model.RunStatus{
		Timestamp:    time.Now(),
		ExistingRows: len(existing),
		AddedRows:    added,
		TotalRows:    len(merged),
		SeriesCount:  len(cfg.Series),
		Err:          lastErr,
	}

	if err := workbook.Write(merged, cfg.SeriesSpecs(), status); err != nil {
		return err
	}
	if err := mirror.Write(merged, cfg.SeriesSpecs(), status); err != nil {
		logger.Error().Err(err).Msg("sqlite mirror write failed")
	}

	logger.Info().
		Int("ok", seriesOK).
		Int("total", len(cfg.Series)).
		Int("added", added).
		Int("rows", len(merged)).
		Str("output", outputPath).
		Msg("collection finished")
	if seriesOK < len(cfg.Series) {
		logger.Warn().Int("failed", len(cfg.Series)-seriesOK).Msg("some series failed this run")
	}

	return nil
}

func logQuality(logger zerolog.Logger, stats transform.Stats) {
	event := logger.Info().Int("rows", stats.Rows).Int("missing_values", stats.Missing)
	if stats.Rows > stats.Missing {
		event = event.
			Float64("min", stats.Min).
			Float64("max", stats.Max).
			Float64("mean", stats.Mean)
	}
	event.Msg("merged table quality")
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(cliDateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func resolveDateRange(from, to *time.Time, daysBack, defaultDaysBack int) (time.Time, time.Time) {
	dateTo := time.Now()
	if to != nil {
		dateTo = *to
	}

	if from != nil {
		return *from, dateTo
	}

	back := daysBack
	if back <= 0 {
		back = defaultDaysBack
	}
	return dateTo.AddDate(0, 0, -back), dateTo
}
