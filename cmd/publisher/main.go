package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sgscollector/internal/model"
	"sgscollector/internal/store"
	"sgscollector/internal/store/excel"
	"sgscollector/internal/store/sqlite"
)

type metaFile struct {
	GeneratedAt string `json:"generated_at"`
}

type latestFile struct {
	GeneratedAt string        `json:"generated_at"`
	Rows        []latestEntry `json:"rows"`
}

type latestEntry struct {
	SeriesCode int     `json:"series_id"`
	SeriesName string  `json:"series_name"`
	Unit       string  `json:"unit"`
	Date       string  `json:"date"`
	Value      float64 `json:"value"`
	HasValue   bool    `json:"has_value"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		build(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func build(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	outDir := fs.String("out", "site/data", "output directory")
	workbook := fs.String("output", "data/output/indicators.xlsx", "workbook path")
	dbPath := fs.String("db", "", "sqlite mirror path (takes precedence over -output)")
	fs.Parse(args)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create output dir:", err)
		os.Exit(1)
	}

	source, err := openStore(*dbPath, *workbook)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open store:", err)
		os.Exit(1)
	}
	defer source.Close()

	observations, err := source.ReadData()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read observations:", err)
		os.Exit(1)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := writeJSON(filepath.Join(*outDir, "meta.json"), metaFile{GeneratedAt: now}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write meta.json:", err)
		os.Exit(1)
	}

	latest := buildLatest(observations)
	if err := writeJSON(filepath.Join(*outDir, "latest.json"), latestFile{GeneratedAt: now, Rows: latest}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write latest.json:", err)
		os.Exit(1)
	}

	fmt.Printf("publisher build complete (out=%s, series=%d)\n", *outDir, len(latest))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: publisher build [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -out     output directory (default: site/data)")
	fmt.Fprintln(os.Stderr, "  -output  workbook path (default: data/output/indicators.xlsx)")
	fmt.Fprintln(os.Stderr, "  -db      sqlite mirror path (takes precedence)")
}

func openStore(dbPath, workbookPath string) (store.Store, error) {
	if dbPath != "" {
		return sqlite.New(dbPath)
	}
	return excel.New(workbookPath)
}

// buildLatest keeps the most recent observation per series. Input comes
// back from the store already sorted by (series code, date), so the last
// row of each series run is its latest.
func buildLatest(observations []model.Observation) []latestEntry {
	entries := make([]latestEntry, 0)
	for i, observation := range observations {
		if i+1 < len(observations) && observations[i+1].SeriesCode == observation.SeriesCode {
			continue
		}
		entry := latestEntry{
			SeriesCode: observation.SeriesCode,
			SeriesName: observation.SeriesName,
			Unit:       observation.Unit,
			Date:       observation.Date.Format(model.DateLayout),
			HasValue:   observation.HasValue(),
		}
		if observation.HasValue() {
			entry.Value = observation.Value
		}
		entries = append(entries, entry)
	}
	return entries
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
