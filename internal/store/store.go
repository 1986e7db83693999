package store

import (
	"fmt"

	"MarketSync/internal/model"
)

// SeriesStore persists per-ticker, per-granularity bar series.
type SeriesStore interface {
	// Load returns nil (and no error) when nothing has been stored yet.
	Load(ticker string, g model.Granularity) (*model.SeriesRecord, error)
	// Append writes bars, which must be strictly ascending and newer than
	// anything stored, and returns how many rows were written.
	Append(ticker string, g model.Granularity, bars []model.Bar) (int, error)
}

// MalformedSeriesError means a stored file exists but cannot be read back as
// a series. It is not retryable.
type MalformedSeriesError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedSeriesError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed series %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed series %s: %s", e.Path, e.Reason)
}

func (e *MalformedSeriesError) Unwrap() error { return e.Err }
