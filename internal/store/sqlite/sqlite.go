package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"sgscollector/internal/model"
)

// Store mirrors the workbook's three tables into SQLite so the history
// can be queried without opening the spreadsheet.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ReadData() ([]model.Observation, error) {
	rows, err := s.db.Query(`
		SELECT date, value, series_name, series_code, unit
		FROM observations
		ORDER BY series_code, date
	`)
	if err != nil {
		return []model.Observation{}, nil
	}
	defer rows.Close()

	out := make([]model.Observation, 0)
	for rows.Next() {
		var (
			dateText   string
			value      sql.NullFloat64
			seriesName string
			seriesCode int
			unit       string
		)
		if err := rows.Scan(&dateText, &value, &seriesName, &seriesCode, &unit); err != nil {
			continue
		}
		date, err := time.Parse(model.DateLayout, dateText)
		if err != nil {
			continue
		}
		parsed := math.NaN()
		if value.Valid {
			parsed = value.Float64
		}
		out = append(out, model.Observation{
			Date:       date,
			Value:      parsed,
			SeriesName: seriesName,
			SeriesCode: seriesCode,
			Unit:       unit,
		})
	}
	return out, nil
}

func (s *Store) Write(data []model.Observation, series []model.SeriesSpec, status model.RunStatus) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO observations (date, series_code, value, series_name, unit)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, series_code)
		DO UPDATE SET
			value = excluded.value,
			series_name = excluded.series_name,
			unit = excluded.unit
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, observation := range data {
		var value any
		if observation.HasValue() {
			value = observation.Value
		}
		_, err = stmt.Exec(
			observation.Date.Format(model.DateLayout),
			observation.SeriesCode,
			value,
			observation.SeriesName,
			observation.Unit,
		)
		if err != nil {
			return err
		}
	}

	if _, err = tx.Exec(`DELETE FROM series`); err != nil {
		return err
	}
	for _, spec := range series {
		_, err = tx.Exec(`
			INSERT INTO series (code, name, unit, category, usage, source)
			VALUES (?, ?, ?, ?, ?, ?)
		`, spec.Code, spec.Name, spec.Unit, spec.Category, spec.Usage, spec.Source)
		if err != nil {
			return err
		}
	}

	var statusErr any
	if status.Err != "" {
		statusErr = status.Err
	}
	_, err = tx.Exec(`
		INSERT INTO run_status (timestamp, existing_rows, added_rows, total_rows, series_count, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		status.Timestamp.Format(model.TimestampLayout),
		status.ExistingRows,
		status.AddedRows,
		status.TotalRows,
		status.SeriesCount,
		statusErr,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			date TEXT NOT NULL,
			series_code INTEGER NOT NULL,
			value REAL,
			series_name TEXT NOT NULL,
			unit TEXT NOT NULL,
			PRIMARY KEY (date, series_code)
		);`,
		`CREATE TABLE IF NOT EXISTS series (
			code INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			unit TEXT,
			category TEXT,
			usage TEXT,
			source TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS run_status (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			existing_rows INTEGER NOT NULL,
			added_rows INTEGER NOT NULL,
			total_rows INTEGER NOT NULL,
			series_count INTEGER NOT NULL,
			error TEXT
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
