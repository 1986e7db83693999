package planner

import (
	"fmt"
	"strings"
	"time"

	"MarketSync/internal/model"
)

// CutoffMode decides when today's daily bar counts as still forming.
type CutoffMode string

const (
	// CutoffClose treats the market as open until the close, including the
	// hours before the session starts.
	CutoffClose CutoffMode = "close"
	// CutoffSession treats the market as open only between open and close.
	CutoffSession CutoffMode = "session"
)

// ParseCutoffMode accepts "close" or "session"; empty means close.
func ParseCutoffMode(s string) (CutoffMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "close":
		return CutoffClose, nil
	case "session":
		return CutoffSession, nil
	}
	return "", fmt.Errorf("unknown daily cutoff %q (use: close, session)", s)
}

// Policy holds the alignment rules of the exchange calendar.
type Policy struct {
	MarketOpen  time.Duration // offset from local midnight
	MarketClose time.Duration
	DailyCutoff CutoffMode

	// ReconfirmBoundary re-fetches yesterday's daily bar when it is the last
	// one stored, in case upstream revised it after the close.
	ReconfirmBoundary bool

	// SessionOffset is where hourly bars close relative to the hour
	// (09:15-aligned sessions close at :15).
	SessionOffset time.Duration

	// FiveMinuteLookback bounds the first fetch of an empty 5m series.
	FiveMinuteLookback time.Duration
}

// DefaultPolicy returns a 09:00-16:00 session with hourly bars closing at :15.
func DefaultPolicy() Policy {
	return Policy{
		MarketOpen:         9 * time.Hour,
		MarketClose:        16 * time.Hour,
		DailyCutoff:        CutoffClose,
		SessionOffset:      15 * time.Minute,
		FiveMinuteLookback: 55 * 24 * time.Hour,
	}
}

// Planner computes fetch windows so that only completed bars are requested.
type Planner struct {
	Policy Policy
}

// New creates a Planner.
func New(p Policy) *Planner {
	return &Planner{Policy: p}
}

// PlanWindow returns the window to fetch for a series whose latest stored
// timestamp is last (zero when the series is empty). All boundaries are built
// in now's location. A window with Start >= End means nothing to fetch.
func (p *Planner) PlanWindow(g model.Granularity, last time.Time, now time.Time) model.SyncWindow {
	switch g {
	case model.Daily:
		return p.dailyWindow(last, now)
	case model.Hourly:
		return p.hourlyWindow(last, now)
	default:
		return p.fiveMinuteWindow(last, now)
	}
}

func (p *Planner) dailyWindow(last, now time.Time) model.SyncWindow {
	today := midnight(now)
	yesterday := today.AddDate(0, 0, -1)

	end := today
	if p.MarketOpenAt(now) {
		end = yesterday
	}

	start := model.Daily.DefaultStart(now)
	if !last.IsZero() {
		lastDay := midnight(last.In(now.Location()))
		start = lastDay.AddDate(0, 0, 1)
		if p.Policy.ReconfirmBoundary && lastDay.Equal(yesterday) {
			start = lastDay
		}
	}
	return model.SyncWindow{Start: start, End: end}
}

func (p *Planner) hourlyWindow(last, now time.Time) model.SyncWindow {
	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	end := hour.Add(p.Policy.SessionOffset)
	if now.Before(end) {
		end = end.Add(-time.Hour)
	}

	start := model.Hourly.DefaultStart(now)
	if !last.IsZero() {
		start = last.In(now.Location())
	}
	return model.SyncWindow{Start: start, End: end}
}

func (p *Planner) fiveMinuteWindow(last, now time.Time) model.SyncWindow {
	end := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute()-now.Minute()%5, 0, 0, now.Location())
	if end.Equal(now) {
		end = end.Add(-5 * time.Minute)
	}

	start := now.Add(-p.lookback())
	if !last.IsZero() {
		start = last.In(now.Location())
	}
	return model.SyncWindow{Start: start, End: end}
}

func (p *Planner) lookback() time.Duration {
	if p.Policy.FiveMinuteLookback > 0 {
		return p.Policy.FiveMinuteLookback
	}
	return DefaultPolicy().FiveMinuteLookback
}

// MarketOpenAt reports whether today's daily bar is still forming at now.
func (p *Planner) MarketOpenAt(now time.Time) bool {
	clock := now.Sub(midnight(now))
	if clock >= p.Policy.MarketClose {
		return false
	}
	if p.Policy.DailyCutoff == CutoffSession {
		return clock >= p.Policy.MarketOpen
	}
	return true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
