package providers

import (
	"context"
	"time"
)

// RawObservation is one (date, value) pair exactly as the SGS API
// returns it: both fields are text and the date uses dd/MM/yyyy.
type RawObservation struct {
	Date  string `json:"data"`
	Value string `json:"valor"`
}

type Provider interface {
	Name() string
	FetchSeries(ctx context.Context, code int, from, to time.Time) ([]RawObservation, error)
}
