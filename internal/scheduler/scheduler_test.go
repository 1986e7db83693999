package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSync/internal/alert"
	"MarketSync/internal/collector"
	"MarketSync/internal/model"
	"MarketSync/internal/store"
	"MarketSync/internal/syncer"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureNotifier) Send(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func risingBars(n int) []model.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		p := decimal.NewFromInt(int64(100 + i))
		bars[i] = model.Bar{Time: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, Volume: 10}
	}
	return bars
}

func newTestScheduler(t *testing.T) (*Scheduler, *captureNotifier, string) {
	t.Helper()
	root := t.TempDir()
	st := store.NewCSVStore(filepath.Join(root, "raw"), time.UTC)
	mock := &collector.MockFetcher{Series: map[string][]model.Bar{"AAA": risingBars(40)}}
	n := &captureNotifier{}

	sy, err := syncer.New(syncer.Config{
		Tickers:       []string{"AAA"},
		Granularities: []model.Granularity{model.Daily},
		Fetcher:       mock,
		Store:         st,
		Notifier:      n,
	})
	require.NoError(t, err)
	mon, err := alert.NewMonitor(alert.Config{
		Store:     st,
		Notifier:  n,
		StateFile: filepath.Join(root, "alerts.json"),
	})
	require.NoError(t, err)

	s := NewScheduler(context.Background(), sy, st, mon, n, time.UTC)
	s.ParquetDir = filepath.Join(root, "parquet")
	s.Now = func() time.Time { return time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC) }
	return s, n, root
}

func TestSyncCommandRunsPass(t *testing.T) {
	s, n, root := newTestScheduler(t)

	reply := s.HandleCommand(context.Background(), "/sync daily")
	assert.Contains(t, reply, "<b>daily</b>: 1 updated")
	assert.Contains(t, reply, "AAA: UPDATED(40)")

	_, err := os.Stat(filepath.Join(root, "parquet", "AAA_D.parquet"))
	assert.NoError(t, err)

	// Forty rising closes put RSI at 100.
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "<b>AAA</b> daily RSI(14) 100.00")

	res := s.LastPass(model.Daily)
	require.NotNil(t, res)
	assert.Equal(t, "command", res.Source)
}

func TestStatusCommand(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	assert.Equal(t, "daily: no pass yet", s.HandleCommand(context.Background(), "/status"))

	res := s.RunNow("once")
	reply := s.HandleCommand(context.Background(), "/status@MarketSyncBot")
	assert.Contains(t, reply, res.RunID)
	assert.Contains(t, reply, "AAA: UPDATED(40)")
}

func TestRSICommand(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ctx := context.Background()

	assert.Equal(t, "Usage: /rsi TICKER", s.HandleCommand(ctx, "/rsi"))
	assert.Contains(t, s.HandleCommand(ctx, "/rsi aaa"), "No stored data for AAA")

	s.RunNow("once")
	reply := s.HandleCommand(ctx, "/rsi aaa")
	assert.Contains(t, reply, "<b>AAA</b>")
	assert.Contains(t, reply, "daily: RSI(14) 100.00, close 139.00 @ 2024-02-09")
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	for _, cmd := range []string{"", "/help", "hello"} {
		reply := s.HandleCommand(context.Background(), cmd)
		assert.True(t, strings.HasPrefix(reply, "<b>MarketSync commands</b>"), "command %q", cmd)
	}
	assert.Contains(t, s.HandleCommand(context.Background(), "/sync weekly"), "unknown granularity")
}

func TestRegisterAll(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	require.NoError(t, s.RegisterAll(func(model.Granularity) string { return "0 30 16 * * 1-5" }))
	assert.Len(t, s.Cron.Entries(), 1)

	s2, _, _ := newTestScheduler(t)
	require.NoError(t, s2.RegisterAll(func(model.Granularity) string { return "" }))
	assert.Empty(t, s2.Cron.Entries())

	s3, _, _ := newTestScheduler(t)
	assert.Error(t, s3.RegisterAll(func(model.Granularity) string { return "not a cron" }))
}
