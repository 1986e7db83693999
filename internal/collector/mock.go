package collector

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"MarketSync/internal/model"
)

// MockFetcher returns controllable data for development and testing.
//
// Series holds per-symbol upstream history; Fetch returns the bars inside the
// window plus up to Overlap bars before it, the way real providers repeat the
// boundary bar. Symbols without a series get generated bars around Price.
type MockFetcher struct {
	Price   float64
	Series  map[string][]model.Bar
	Errs    map[string]error
	Overlap int

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Fetch(_ context.Context, symbol string, window model.SyncWindow, g model.Granularity) ([]model.Bar, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if err := m.Errs[symbol]; err != nil {
		return nil, err
	}
	series, ok := m.Series[symbol]
	if !ok {
		return generateMockBars(m.Price, window, g), nil
	}

	var out []model.Bar
	firstIn := -1
	for i, b := range series {
		if window.Contains(b.Time) {
			if firstIn < 0 {
				firstIn = i
			}
			out = append(out, b)
		}
	}
	if m.Overlap > 0 && firstIn > 0 {
		from := firstIn - m.Overlap
		if from < 0 {
			from = 0
		}
		out = append(append([]model.Bar{}, series[from:firstIn]...), out...)
	}
	return out, nil
}

// Calls returns how many times symbol was fetched.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

func generateMockBars(basePrice float64, window model.SyncWindow, g model.Granularity) []model.Bar {
	if basePrice <= 0 || window.Empty() {
		return nil
	}
	var bars []model.Bar
	i := 0
	for t := window.Start; t.Before(window.End); t = t.Add(g.Step()) {
		if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			continue
		}
		p := decimal.NewFromFloat(basePrice * (1 + float64(i%20-10)*0.001)).Round(2)
		bars = append(bars, model.Bar{
			Time:   g.Normalize(t),
			Open:   p,
			High:   p.Mul(decimal.RequireFromString("1.005")).Round(2),
			Low:    p.Mul(decimal.RequireFromString("0.995")).Round(2),
			Close:  p,
			Volume: 1000000,
		})
		i++
	}
	return bars
}
