package alert

import (
	"context"
	"fmt"
	"log"
	"sync"

	"MarketSync/internal/calculator"
	"MarketSync/internal/model"
	"MarketSync/internal/notifier"
	"MarketSync/internal/recorder"
	"MarketSync/internal/store"
)

// Config wires a Monitor. Notifier and Recorder are optional.
type Config struct {
	Store      store.SeriesStore
	Notifier   notifier.Notifier
	Recorder   recorder.Recorder
	Period     int
	Thresholds Thresholds
	StateFile  string
}

// Monitor computes RSI over stored series and alerts on zone changes.
type Monitor struct {
	cfg Config

	mu    sync.Mutex
	state *State
}

// NewMonitor creates a Monitor, loading zone state from disk.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.Period <= 0 {
		cfg.Period = 14
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	state, err := LoadState(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("load alert state: %w", err)
	}
	return &Monitor{cfg: cfg, state: state}, nil
}

// Reading returns the latest RSI of a stored series, or nil when there are
// not enough bars yet.
func (m *Monitor) Reading(ticker string, g model.Granularity) (*model.RSIReading, error) {
	rec, err := m.cfg.Store.Load(ticker, g)
	if err != nil {
		return nil, err
	}
	if rec.Len() == 0 {
		return nil, nil
	}
	rsi, ok := calculator.LatestRSI(rec.Bars, m.cfg.Period)
	if !ok {
		return nil, nil
	}
	last := rec.Bars[len(rec.Bars)-1]
	return &model.RSIReading{
		Ticker:      ticker,
		Granularity: g,
		Time:        last.Time,
		Close:       last.Close.InexactFloat64(),
		RSI:         rsi,
		Period:      m.cfg.Period,
	}, nil
}

// Readings returns the latest RSI of every granularity stored for ticker.
func (m *Monitor) Readings(ticker string, granularities []model.Granularity) ([]model.RSIReading, error) {
	var out []model.RSIReading
	for _, g := range granularities {
		r, err := m.Reading(ticker, g)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// Check evaluates tickers at granularity g and returns an alert for every
// series whose zone changed since the previous check. A series seen for the
// first time alerts only when it is outside the neutral zone.
func (m *Monitor) Check(ctx context.Context, tickers []string, g model.Granularity) ([]model.RSIAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []model.RSIAlert
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return alerts, err
		}
		reading, err := m.Reading(ticker, g)
		if err != nil {
			log.Printf("[WARN] rsi %s %s: %v", ticker, g, err)
			continue
		}
		if reading == nil {
			continue
		}

		zone := m.cfg.Thresholds.Classify(reading.RSI)
		key := stateKey(ticker, g)
		prev, seen := m.state.Zones[key]
		if !seen {
			prev = model.ZoneNeutral
		}
		m.state.Zones[key] = zone
		if zone == prev {
			continue
		}

		alert := model.RSIAlert{Reading: *reading, Zone: zone, Previous: prev, Label: Label(zone)}
		log.Printf("[INFO] rsi %s %s %.2f: %s -> %s", ticker, g, reading.RSI, prev, zone)
		m.deliver(ctx, &alert)
		alerts = append(alerts, alert)
	}

	if err := SaveState(m.cfg.StateFile, m.state); err != nil {
		return alerts, fmt.Errorf("save alert state: %w", err)
	}
	return alerts, nil
}

func (m *Monitor) deliver(ctx context.Context, a *model.RSIAlert) {
	if m.cfg.Notifier != nil {
		if err := m.cfg.Notifier.Send(ctx, notifier.FormatRSIAlert(a)); err != nil {
			log.Printf("[ERROR] %v", &notifier.NotifyError{Err: err})
		}
	}
	if m.cfg.Recorder != nil {
		if err := m.cfg.Recorder.RecordAlert(a); err != nil {
			log.Printf("[ERROR] record alert: %v", err)
		}
	}
}

// Zone returns the last recorded zone of a series.
func (m *Monitor) Zone(ticker string, g model.Granularity) (model.RSIZone, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.state.Zones[stateKey(ticker, g)]
	return z, ok
}
