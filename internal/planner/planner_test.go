package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"MarketSync/internal/model"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestPlanWindow_Daily(t *testing.T) {
	p := New(DefaultPolicy())

	tests := []struct {
		name      string
		last      time.Time
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"empty after close", time.Time{}, at(2024, 3, 15, 18, 0), at(2020, 1, 1, 0, 0), at(2024, 3, 15, 0, 0)},
		{"empty market open", time.Time{}, at(2024, 3, 15, 10, 0), at(2020, 1, 1, 0, 0), at(2024, 3, 14, 0, 0)},
		{"exactly at close", time.Time{}, at(2024, 3, 15, 16, 0), at(2020, 1, 1, 0, 0), at(2024, 3, 15, 0, 0)},
		{"incremental", at(2024, 3, 10, 0, 0), at(2024, 3, 15, 18, 0), at(2024, 3, 11, 0, 0), at(2024, 3, 15, 0, 0)},
		{"last is yesterday", at(2024, 3, 14, 0, 0), at(2024, 3, 15, 18, 0), at(2024, 3, 15, 0, 0), at(2024, 3, 15, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := p.PlanWindow(model.Daily, tt.last, tt.now)
			assert.Equal(t, tt.wantStart, w.Start)
			assert.Equal(t, tt.wantEnd, w.End)
		})
	}
}

func TestPlanWindow_DailyUpToDateIsEmpty(t *testing.T) {
	p := New(DefaultPolicy())
	w := p.PlanWindow(model.Daily, at(2024, 3, 14, 0, 0), at(2024, 3, 15, 18, 0))
	assert.True(t, w.Empty())

	// market still open: yesterday's bar excluded, last bar two days back
	w = p.PlanWindow(model.Daily, at(2024, 3, 13, 0, 0), at(2024, 3, 15, 10, 0))
	assert.True(t, w.Empty())
}

func TestPlanWindow_DailyReconfirmBoundary(t *testing.T) {
	pol := DefaultPolicy()
	pol.ReconfirmBoundary = true
	p := New(pol)

	w := p.PlanWindow(model.Daily, at(2024, 3, 14, 0, 0), at(2024, 3, 15, 18, 0))
	assert.Equal(t, at(2024, 3, 14, 0, 0), w.Start)
	assert.Equal(t, at(2024, 3, 15, 0, 0), w.End)
	assert.False(t, w.Empty())

	// older bars are not re-fetched
	w = p.PlanWindow(model.Daily, at(2024, 3, 12, 0, 0), at(2024, 3, 15, 18, 0))
	assert.Equal(t, at(2024, 3, 13, 0, 0), w.Start)
}

func TestPlanWindow_DailyCutoffSession(t *testing.T) {
	pol := DefaultPolicy()
	pol.DailyCutoff = CutoffSession
	p := New(pol)

	// before the open today's bar has not started, so yesterday is complete
	w := p.PlanWindow(model.Daily, time.Time{}, at(2024, 3, 15, 8, 0))
	assert.Equal(t, at(2024, 3, 15, 0, 0), w.End)

	w = p.PlanWindow(model.Daily, time.Time{}, at(2024, 3, 15, 9, 30))
	assert.Equal(t, at(2024, 3, 14, 0, 0), w.End)

	// close mode treats early morning as open
	w = New(DefaultPolicy()).PlanWindow(model.Daily, time.Time{}, at(2024, 3, 15, 8, 0))
	assert.Equal(t, at(2024, 3, 14, 0, 0), w.End)
}

func TestPlanWindow_Hourly(t *testing.T) {
	p := New(DefaultPolicy())

	w := p.PlanWindow(model.Hourly, time.Time{}, at(2024, 3, 15, 11, 20))
	assert.Equal(t, at(2024, 1, 1, 0, 0), w.Start)
	assert.Equal(t, at(2024, 3, 15, 11, 15), w.End)

	w = p.PlanWindow(model.Hourly, time.Time{}, at(2024, 3, 15, 11, 10))
	assert.Equal(t, at(2024, 3, 15, 10, 15), w.End)

	w = p.PlanWindow(model.Hourly, time.Time{}, at(2024, 3, 15, 11, 15))
	assert.Equal(t, at(2024, 3, 15, 11, 15), w.End)

	last := at(2024, 3, 15, 9, 15)
	w = p.PlanWindow(model.Hourly, last, at(2024, 3, 15, 11, 20))
	assert.Equal(t, last, w.Start, "latest known bar is re-fetched")

	w = p.PlanWindow(model.Hourly, at(2024, 3, 15, 11, 15), at(2024, 3, 15, 11, 40))
	assert.True(t, w.Empty())
}

func TestPlanWindow_HourlyCustomOffset(t *testing.T) {
	pol := DefaultPolicy()
	pol.SessionOffset = 30 * time.Minute
	p := New(pol)

	w := p.PlanWindow(model.Hourly, time.Time{}, at(2024, 3, 15, 11, 20))
	assert.Equal(t, at(2024, 3, 15, 10, 30), w.End)
}

func TestPlanWindow_FiveMinute(t *testing.T) {
	p := New(DefaultPolicy())

	now := time.Date(2024, 3, 15, 11, 23, 41, 0, time.UTC)
	w := p.PlanWindow(model.FiveMinute, time.Time{}, now)
	assert.Equal(t, at(2024, 3, 15, 11, 20), w.End)
	assert.Equal(t, now.Add(-55*24*time.Hour), w.Start)

	// exactly on the boundary: that candle is still forming
	w = p.PlanWindow(model.FiveMinute, time.Time{}, at(2024, 3, 15, 11, 25))
	assert.Equal(t, at(2024, 3, 15, 11, 20), w.End)

	last := at(2024, 3, 15, 10, 0)
	w = p.PlanWindow(model.FiveMinute, last, now)
	assert.Equal(t, last, w.Start)
}

func TestPlanWindow_UsesNowLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	p := New(DefaultPolicy())

	now := time.Date(2024, 3, 15, 11, 20, 0, 0, ist)
	w := p.PlanWindow(model.Hourly, time.Time{}, now)
	assert.Equal(t, time.Date(2024, 3, 15, 11, 15, 0, 0, ist), w.End)

	w = p.PlanWindow(model.Daily, time.Time{}, now)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, ist), w.End)
}

func TestParseCutoffMode(t *testing.T) {
	m, err := ParseCutoffMode("")
	assert.NoError(t, err)
	assert.Equal(t, CutoffClose, m)

	m, err = ParseCutoffMode("Session")
	assert.NoError(t, err)
	assert.Equal(t, CutoffSession, m)

	_, err = ParseCutoffMode("noon")
	assert.Error(t, err)
}
