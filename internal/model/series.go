package model

import "time"

// SeriesRecord is the persisted bar sequence of one (ticker, granularity) pair.
type SeriesRecord struct {
	Ticker      string
	Granularity Granularity
	Bars        []Bar

	keys map[string]struct{}
}

// NewSeriesRecord builds a record over bars in file order.
func NewSeriesRecord(ticker string, g Granularity, bars []Bar) *SeriesRecord {
	return &SeriesRecord{Ticker: ticker, Granularity: g, Bars: bars}
}

// Last returns the latest timestamp in the series. Files written by older
// tools are not guaranteed to be sorted, so this scans rather than taking the
// final row.
func (r *SeriesRecord) Last() (time.Time, bool) {
	if r == nil || len(r.Bars) == 0 {
		return time.Time{}, false
	}
	last := r.Bars[0].Time
	for _, b := range r.Bars[1:] {
		if b.Time.After(last) {
			last = b.Time
		}
	}
	return last, true
}

// Contains reports whether a bar with the same persisted timestamp exists.
func (r *SeriesRecord) Contains(t time.Time) bool {
	if r == nil {
		return false
	}
	if r.keys == nil {
		r.keys = make(map[string]struct{}, len(r.Bars))
		for _, b := range r.Bars {
			r.keys[r.Granularity.FormatTimestamp(b.Time)] = struct{}{}
		}
	}
	_, ok := r.keys[r.Granularity.FormatTimestamp(t)]
	return ok
}

// Len returns the number of stored bars.
func (r *SeriesRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Bars)
}

// SyncWindow is the half-open range [Start, End) requested from upstream.
type SyncWindow struct {
	Start time.Time
	End   time.Time
}

// Empty means the series is already up to date and no fetch should happen.
func (w SyncWindow) Empty() bool {
	return !w.Start.Before(w.End)
}

// Contains reports whether t falls inside the window.
func (w SyncWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w SyncWindow) String() string {
	return w.Start.Format("2006-01-02 15:04") + " .. " + w.End.Format("2006-01-02 15:04")
}
