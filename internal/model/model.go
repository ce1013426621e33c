package model

import (
	"math"
	"time"
)

// DataColumns is the header of the store's data table. Both store
// implementations and the quality report key on these names.
var DataColumns = []string{"date", "value", "series_name", "series_id", "unit"}

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

type SeriesSpec struct {
	Name     string
	Code     int
	Unit     string
	Category string
	Usage    string
	Source   string
}

type Observation struct {
	Date       time.Time
	Value      float64
	SeriesName string
	SeriesCode int
	Unit       string
}

// HasValue reports whether the observation carries a numeric value.
// Upstream placeholders such as "N/D" are stored as NaN.
func (o Observation) HasValue() bool {
	return !math.IsNaN(o.Value)
}

type Key struct {
	Date       string
	SeriesCode int
}

func (o Observation) Key() Key {
	return Key{Date: o.Date.Format(DateLayout), SeriesCode: o.SeriesCode}
}

type RunStatus struct {
	Timestamp    time.Time
	ExistingRows int
	AddedRows    int
	TotalRows    int
	SeriesCount  int
	Err          string
}
