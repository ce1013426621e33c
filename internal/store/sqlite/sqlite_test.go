package sqlite

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgscollector/internal/model"
)

func day(value string) time.Time {
	parsed, err := time.Parse(model.DateLayout, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWriteThenRead(t *testing.T) {
	store := newTestStore(t)

	data := []model.Observation{
		{Date: day("2025-01-02"), Value: 6.1832, SeriesName: "Dólar", SeriesCode: 1, Unit: "R$/US$"},
		{Date: day("2025-01-03"), Value: math.NaN(), SeriesName: "Dólar", SeriesCode: 1, Unit: "R$/US$"},
	}
	series := []model.SeriesSpec{{Name: "Dólar", Code: 1, Unit: "R$/US$"}}
	status := model.RunStatus{Timestamp: time.Now(), AddedRows: 2, TotalRows: 2, SeriesCount: 1}

	require.NoError(t, store.Write(data, series, status))

	rows, err := store.ReadData()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 6.1832, rows[0].Value)
	assert.True(t, math.IsNaN(rows[1].Value), "NULL value must read back as NaN")
}

func TestWrite_UpsertsOnConflict(t *testing.T) {
	store := newTestStore(t)

	series := []model.SeriesSpec{{Name: "Dólar", Code: 1, Unit: "R$/US$"}}
	first := []model.Observation{{Date: day("2025-01-02"), Value: 6.18, SeriesName: "Dólar", SeriesCode: 1, Unit: "R$/US$"}}
	revised := []model.Observation{{Date: day("2025-01-02"), Value: 6.21, SeriesName: "Dólar", SeriesCode: 1, Unit: "R$/US$"}}

	require.NoError(t, store.Write(first, series, model.RunStatus{Timestamp: time.Now()}))
	require.NoError(t, store.Write(revised, series, model.RunStatus{Timestamp: time.Now()}))

	rows, err := store.ReadData()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 6.21, rows[0].Value)
}

func TestWrite_StatusAccumulates(t *testing.T) {
	store := newTestStore(t)

	series := []model.SeriesSpec{{Name: "Dólar", Code: 1, Unit: "R$/US$"}}
	require.NoError(t, store.Write(nil, series, model.RunStatus{Timestamp: time.Now()}))
	require.NoError(t, store.Write(nil, series, model.RunStatus{Timestamp: time.Now(), Err: "boom"}))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM run_status`).Scan(&count))
	assert.Equal(t, 2, count)

	var lastErr string
	require.NoError(t, store.db.QueryRow(`SELECT error FROM run_status ORDER BY id DESC LIMIT 1`).Scan(&lastErr))
	assert.Equal(t, "boom", lastErr)
}
