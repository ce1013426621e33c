package transform

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"sgscollector/internal/model"
	"sgscollector/internal/providers"
)

// apiDateLayout is the dd/MM/yyyy form the SGS API returns.
const apiDateLayout = "02/01/2006"

// Normalize converts one series' raw fetch result into canonical
// observations: dates parsed, values coerced to float, every row stamped
// with the series metadata, sorted by date and deduplicated keep-last.
//
// A date that does not parse fails the whole series: it means the API
// contract changed, not that one row is dirty. A value that does not
// parse becomes NaN: the API uses text placeholders for missing data.
func Normalize(raw []providers.RawObservation, spec model.SeriesSpec) ([]model.Observation, error) {
	rows := make([]model.Observation, 0, len(raw))
	for _, entry := range raw {
		date, err := time.Parse(apiDateLayout, strings.TrimSpace(entry.Date))
		if err != nil {
			return nil, fmt.Errorf("transform: series %d: bad date %q: %w", spec.Code, entry.Date, err)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(entry.Value), 64)
		if err != nil {
			value = math.NaN()
		}

		rows = append(rows, model.Observation{
			Date:       date,
			Value:      value,
			SeriesName: spec.Name,
			SeriesCode: spec.Code,
			Unit:       spec.Unit,
		})
	}

	sortObservations(rows)
	return dedupeLast(rows), nil
}

// Combine pools observations from multiple series into one table sorted
// by (series code, date) and deduplicated on that key. The sort is
// stable, so when two tables carry the same key the later-supplied
// table wins.
func Combine(tables ...[]model.Observation) []model.Observation {
	total := 0
	for _, table := range tables {
		total += len(table)
	}

	pooled := make([]model.Observation, 0, total)
	for _, table := range tables {
		pooled = append(pooled, table...)
	}

	sortObservations(pooled)
	return dedupeLast(pooled)
}

// Merge reconciles freshly combined observations against the previously
// persisted table. Incoming rows override existing rows with the same
// (date, series code) key, modeling upstream revisions. The returned
// count is the row-count delta, not the number of revised keys.
func Merge(existing, incoming []model.Observation) ([]model.Observation, int) {
	merged := make([]model.Observation, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)

	sortObservations(merged)
	merged = dedupeLast(merged)

	added := len(merged) - len(existing)
	if added < 0 {
		added = 0
	}
	return merged, added
}

// sortObservations orders rows by (series code asc, date asc). Stability
// matters: dedupeLast relies on ties keeping their input order so that
// "last supplied" deterministically beats "first supplied".
func sortObservations(rows []model.Observation) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SeriesCode != rows[j].SeriesCode {
			return rows[i].SeriesCode < rows[j].SeriesCode
		}
		return rows[i].Date.Before(rows[j].Date)
	})
}

// dedupeLast keeps the last row of every equal-key run. Input must
// already be sorted by key.
func dedupeLast(rows []model.Observation) []model.Observation {
	out := make([]model.Observation, 0, len(rows))
	for i, row := range rows {
		if i+1 < len(rows) && rows[i+1].Key() == row.Key() {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Stats summarizes a table for the post-merge quality report.
type Stats struct {
	Rows          int
	Missing       int
	DuplicateKeys int
	Min           float64
	Max           float64
	Mean          float64
}

func Summarize(rows []model.Observation) Stats {
	stats := Stats{Rows: len(rows), Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}

	seen := make(map[model.Key]struct{}, len(rows))
	sum := 0.0
	counted := 0
	for _, row := range rows {
		if _, ok := seen[row.Key()]; ok {
			stats.DuplicateKeys++
		}
		seen[row.Key()] = struct{}{}

		if !row.HasValue() {
			stats.Missing++
			continue
		}
		if counted == 0 || row.Value < stats.Min {
			stats.Min = row.Value
		}
		if counted == 0 || row.Value > stats.Max {
			stats.Max = row.Value
		}
		sum += row.Value
		counted++
	}

	if counted > 0 {
		stats.Mean = sum / float64(counted)
	}
	return stats
}
