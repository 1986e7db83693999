package collector

import (
	"context"
	"fmt"

	"MarketSync/internal/model"
)

// Fetcher defines the interface for fetching historical bars from upstream.
// Bars come back ascending; an empty result is not an error. Bar times may be
// in any location: the synchronizer converts them to the exchange location
// before they are compared or stored.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, window model.SyncWindow, g model.Granularity) ([]model.Bar, error)
	Name() string
}

// FetchError reports an upstream transport or provider failure after all
// retries were spent.
type FetchError struct {
	Symbol   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Symbol, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
