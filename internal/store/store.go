package store

import "sgscollector/internal/model"

// Store is a named-table container with three tables: the observation
// history ("data"), the configured series catalog ("series") and the
// per-run status history ("status").
type Store interface {
	// ReadData returns the persisted observation history. A missing or
	// unreadable container yields an empty table, never an error: the
	// merge must work on first run and after manual file damage.
	ReadData() ([]model.Observation, error)
	Write(data []model.Observation, series []model.SeriesSpec, status model.RunStatus) error
	Close() error
}

type NopStore struct{}

func (s *NopStore) ReadData() ([]model.Observation, error) {
	return nil, nil
}

func (s *NopStore) Write(data []model.Observation, series []model.SeriesSpec, status model.RunStatus) error {
	_ = data
	_ = series
	_ = status
	return nil
}

func (s *NopStore) Close() error {
	return nil
}
