package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents a single OHLCV observation. Time is exchange-local and
// persisted without an offset.
type Bar struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Granularity is the sampling interval of a series.
type Granularity string

const (
	Daily      Granularity = "daily"
	Hourly     Granularity = "hourly"
	FiveMinute Granularity = "5m"
)

// Granularities lists every supported granularity, coarsest first.
var Granularities = []Granularity{Daily, Hourly, FiveMinute}

const (
	dailyLayout    = "2006-01-02"
	intradayLayout = "2006-01-02 15:04:05"

	fiveMinuteLookback = 55 * 24 * time.Hour
)

// ParseGranularity accepts the config names plus the file suffixes.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d", "1d":
		return Daily, nil
	case "hourly", "60m", "1h":
		return Hourly, nil
	case "5m", "five_minute", "fiveminute":
		return FiveMinute, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Suffix is the file name suffix, e.g. RELIANCE.NS_60m.csv.
func (g Granularity) Suffix() string {
	switch g {
	case Daily:
		return "D"
	case Hourly:
		return "60m"
	default:
		return "5m"
	}
}

// IndexColumn is the header name of the timestamp column.
func (g Granularity) IndexColumn() string {
	if g == Daily {
		return "Date"
	}
	return "Datetime"
}

// Intraday reports whether bars carry a time of day.
func (g Granularity) Intraday() bool { return g != Daily }

// Step is the nominal bar length.
func (g Granularity) Step() time.Duration {
	switch g {
	case Daily:
		return 24 * time.Hour
	case Hourly:
		return time.Hour
	default:
		return 5 * time.Minute
	}
}

// DefaultStart is where an empty series begins, in now's location.
func (g Granularity) DefaultStart(now time.Time) time.Time {
	switch g {
	case Daily:
		return time.Date(2020, 1, 1, 0, 0, 0, 0, now.Location())
	case Hourly:
		return time.Date(2024, 1, 1, 0, 0, 0, 0, now.Location())
	default:
		return now.Add(-fiveMinuteLookback)
	}
}

// FormatTimestamp renders t the way it is persisted. It doubles as the
// identity key for deduplication.
func (g Granularity) FormatTimestamp(t time.Time) string {
	if g == Daily {
		return t.Format(dailyLayout)
	}
	return t.Format(intradayLayout)
}

// Normalize strips what the granularity does not carry: the clock for daily
// bars, sub-second precision for intraday ones.
func (g Granularity) Normalize(t time.Time) time.Time {
	if g == Daily {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	return t.Truncate(time.Second)
}
