package excel

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sgscollector/internal/model"
)

const (
	dataSheet   = "data"
	seriesSheet = "series"
	statusSheet = "status"
)

var (
	seriesHeader = []string{"name", "code", "unit", "category", "usage", "source"}
	statusHeader = []string{"timestamp", "existing_rows", "added_rows", "total_rows", "series_count", "error"}
)

type Store struct {
	path string
}

func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("excel: path is required")
	}
	return &Store{path: path}, nil
}

func (s *Store) Close() error {
	return nil
}

// ReadData loads the data sheet of an existing workbook. A missing
// file, an unreadable container, an absent sheet or a foreign header
// all yield an empty table: the previous history is simply gone and the
// run starts fresh rather than aborting.
func (s *Store) ReadData() ([]model.Observation, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return []model.Observation{}, nil
	}

	file, err := excelize.OpenFile(s.path)
	if err != nil {
		return []model.Observation{}, nil
	}
	defer file.Close()

	rows, err := file.GetRows(dataSheet)
	if err != nil || len(rows) == 0 || !headerMatches(rows[0]) {
		return []model.Observation{}, nil
	}

	out := make([]model.Observation, 0, len(rows)-1)
	for _, row := range rows[1:] {
		observation, ok := parseDataRow(row)
		if !ok {
			continue
		}
		out = append(out, observation)
	}
	return out, nil
}

// Write replaces the workbook with the three canonical sheets. The new
// file is assembled in a sibling temp file and moved into place, so an
// interrupted run never leaves a half-written workbook behind.
func (s *Store) Write(data []model.Observation, series []model.SeriesSpec, status model.RunStatus) error {
	previousStatus := s.readStatusRows()

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", dataSheet); err != nil {
		return fmt.Errorf("excel: rename sheet: %w", err)
	}
	for _, sheet := range []string{seriesSheet, statusSheet} {
		if _, err := file.NewSheet(sheet); err != nil {
			return fmt.Errorf("excel: create sheet %s: %w", sheet, err)
		}
	}

	if err := writeDataSheet(file, data); err != nil {
		return err
	}
	if err := writeSeriesSheet(file, series); err != nil {
		return err
	}
	if err := writeStatusSheet(file, previousStatus, status); err != nil {
		return err
	}

	for _, sheet := range []string{dataSheet, seriesSheet, statusSheet} {
		if err := freezeHeader(file, sheet); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("excel: create output dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := file.SaveAs(tmp); err != nil {
		return fmt.Errorf("excel: save workbook: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("excel: replace workbook: %w", err)
	}
	return nil
}

func writeDataSheet(file *excelize.File, data []model.Observation) error {
	header := make([]any, len(model.DataColumns))
	for i, column := range model.DataColumns {
		header[i] = column
	}
	if err := file.SetSheetRow(dataSheet, "A1", &header); err != nil {
		return fmt.Errorf("excel: write data header: %w", err)
	}

	for i, observation := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var value any
		if observation.HasValue() {
			value = observation.Value
		}
		row := []any{
			observation.Date.Format(model.DateLayout),
			value,
			observation.SeriesName,
			observation.SeriesCode,
			observation.Unit,
		}
		if err := file.SetSheetRow(dataSheet, cell, &row); err != nil {
			return fmt.Errorf("excel: write data row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeSeriesSheet(file *excelize.File, series []model.SeriesSpec) error {
	header := make([]any, len(seriesHeader))
	for i, column := range seriesHeader {
		header[i] = column
	}
	if err := file.SetSheetRow(seriesSheet, "A1", &header); err != nil {
		return fmt.Errorf("excel: write series header: %w", err)
	}

	for i, spec := range series {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{spec.Name, spec.Code, spec.Unit, spec.Category, spec.Usage, spec.Source}
		if err := file.SetSheetRow(seriesSheet, cell, &row); err != nil {
			return fmt.Errorf("excel: write series row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeStatusSheet(file *excelize.File, previous [][]string, status model.RunStatus) error {
	header := make([]any, len(statusHeader))
	for i, column := range statusHeader {
		header[i] = column
	}
	if err := file.SetSheetRow(statusSheet, "A1", &header); err != nil {
		return fmt.Errorf("excel: write status header: %w", err)
	}

	rowIndex := 2
	for _, old := range previous {
		cell, err := excelize.CoordinatesToCellName(1, rowIndex)
		if err != nil {
			return err
		}
		row := make([]any, len(old))
		for i, value := range old {
			row[i] = value
		}
		if err := file.SetSheetRow(statusSheet, cell, &row); err != nil {
			return fmt.Errorf("excel: carry status row %d: %w", rowIndex, err)
		}
		rowIndex++
	}

	cell, err := excelize.CoordinatesToCellName(1, rowIndex)
	if err != nil {
		return err
	}
	var errValue any
	if status.Err != "" {
		errValue = status.Err
	}
	row := []any{
		status.Timestamp.Format(model.TimestampLayout),
		status.ExistingRows,
		status.AddedRows,
		status.TotalRows,
		status.SeriesCount,
		errValue,
	}
	if err := file.SetSheetRow(statusSheet, cell, &row); err != nil {
		return fmt.Errorf("excel: write status row: %w", err)
	}
	return nil
}

// readStatusRows recovers the status history from the current workbook
// so Write can append the new run instead of discarding past outcomes.
func (s *Store) readStatusRows() [][]string {
	file, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil
	}
	defer file.Close()

	rows, err := file.GetRows(statusSheet)
	if err != nil || len(rows) < 2 {
		return nil
	}
	return rows[1:]
}

func freezeHeader(file *excelize.File, sheet string) error {
	err := file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		return fmt.Errorf("excel: freeze header on %s: %w", sheet, err)
	}
	return nil
}

func headerMatches(header []string) bool {
	if len(header) < len(model.DataColumns) {
		return false
	}
	for i, column := range model.DataColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), column) {
			return false
		}
	}
	return true
}

// parseDataRow tolerates rows a human may have edited by hand: a bad
// date or code drops the row, a bad value becomes NaN.
func parseDataRow(row []string) (model.Observation, bool) {
	if len(row) < 1 {
		return model.Observation{}, false
	}
	padded := make([]string, len(model.DataColumns))
	copy(padded, row)

	date, err := time.Parse(model.DateLayout, strings.TrimSpace(padded[0]))
	if err != nil {
		return model.Observation{}, false
	}

	code, err := strconv.Atoi(strings.TrimSpace(padded[3]))
	if err != nil {
		return model.Observation{}, false
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(padded[1]), 64)
	if err != nil {
		value = math.NaN()
	}

	return model.Observation{
		Date:       date,
		Value:      value,
		SeriesName: padded[2],
		SeriesCode: code,
		Unit:       padded[4],
	}, true
}
