package excel

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sgscollector/internal/model"
)

func day(value string) time.Time {
	parsed, err := time.Parse(model.DateLayout, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func sampleData() []model.Observation {
	return []model.Observation{
		{Date: day("2025-01-02"), Value: 6.1832, SeriesName: "Dólar comercial (compra)", SeriesCode: 1, Unit: "R$/US$"},
		{Date: day("2025-01-03"), Value: math.NaN(), SeriesName: "Dólar comercial (compra)", SeriesCode: 1, Unit: "R$/US$"},
		{Date: day("2025-01-02"), Value: 11.25, SeriesName: "Meta Selic", SeriesCode: 432, Unit: "% a.a."},
	}
}

func sampleSeries() []model.SeriesSpec {
	return []model.SeriesSpec{
		{Name: "Dólar comercial (compra)", Code: 1, Unit: "R$/US$", Category: "câmbio", Source: "Banco Central do Brasil (SGS)"},
		{Name: "Meta Selic", Code: 432, Unit: "% a.a.", Category: "juros", Source: "Banco Central do Brasil (SGS)"},
	}
}

func sampleStatus() model.RunStatus {
	return model.RunStatus{
		Timestamp:    time.Date(2025, 1, 15, 7, 0, 12, 0, time.UTC),
		ExistingRows: 0,
		AddedRows:    3,
		TotalRows:    3,
		SeriesCount:  2,
	}
}

func TestWriteThenRead_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.xlsx")
	store, err := New(path)
	require.NoError(t, err)

	require.NoError(t, store.Write(sampleData(), sampleSeries(), sampleStatus()))

	rows, err := store.ReadData()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, day("2025-01-02"), rows[0].Date)
	assert.Equal(t, 6.1832, rows[0].Value)
	assert.Equal(t, "Dólar comercial (compra)", rows[0].SeriesName)
	assert.Equal(t, 1, rows[0].SeriesCode)
	assert.Equal(t, "R$/US$", rows[0].Unit)

	assert.True(t, math.IsNaN(rows[1].Value), "absent value must read back as NaN")
	assert.Equal(t, 432, rows[2].SeriesCode)
}

func TestReadData_MissingFileYieldsEmptyTable(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "absent.xlsx"))
	require.NoError(t, err)

	rows, err := store.ReadData()
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestReadData_MalformedContainerYieldsEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("this is not a workbook"), 0o644))

	store, err := New(path)
	require.NoError(t, err)

	rows, err := store.ReadData()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadData_MissingDataSheetYieldsEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.xlsx")
	file := excelize.NewFile()
	require.NoError(t, file.SaveAs(path))
	require.NoError(t, file.Close())

	store, err := New(path)
	require.NoError(t, err)

	rows, err := store.ReadData()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWrite_StatusHistoryAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.xlsx")
	store, err := New(path)
	require.NoError(t, err)

	first := sampleStatus()
	require.NoError(t, store.Write(sampleData(), sampleSeries(), first))

	second := sampleStatus()
	second.Timestamp = first.Timestamp.Add(24 * time.Hour)
	second.ExistingRows = 3
	second.AddedRows = 1
	second.TotalRows = 4
	second.Err = "sgs: request failed after 3 attempts: boom"
	require.NoError(t, store.Write(sampleData(), sampleSeries(), second))

	file, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("status")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header + one row per run")
	assert.Equal(t, "2025-01-15 07:00:12", rows[1][0])
	assert.Equal(t, "2025-01-16 07:00:12", rows[2][0])
	assert.Equal(t, "sgs: request failed after 3 attempts: boom", rows[2][5])
}

func TestWrite_SheetLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.xlsx")
	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Write(sampleData(), sampleSeries(), sampleStatus()))

	file, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	assert.ElementsMatch(t, []string{"data", "series", "status"}, file.GetSheetList())

	dataRows, err := file.GetRows("data")
	require.NoError(t, err)
	assert.Equal(t, model.DataColumns, dataRows[0])

	seriesRows, err := file.GetRows("series")
	require.NoError(t, err)
	require.Len(t, seriesRows, 3)
	assert.Equal(t, []string{"name", "code", "unit", "category", "usage", "source"}, seriesRows[0])
	assert.Equal(t, "Meta Selic", seriesRows[2][0])
}
