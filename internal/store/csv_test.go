package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSync/internal/model"
)

func dailyBar(day int, close string) model.Bar {
	return model.Bar{
		Time:   time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Open:   decimal.RequireFromString(close),
		High:   decimal.RequireFromString(close),
		Low:    decimal.RequireFromString(close),
		Close:  decimal.RequireFromString(close),
		Volume: int64(day * 1000),
	}
}

func TestCSVStore_LoadMissingIsAbsent(t *testing.T) {
	s := NewCSVStore(t.TempDir(), time.UTC)
	rec, err := s.Load("AAPL", model.Daily)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCSVStore_AppendCreatesFileWithHeader(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "raw")
	s := NewCSVStore(root, time.UTC)

	n, err := s.Append("AAPL", model.Daily, []model.Bar{dailyBar(1, "101.5"), dailyBar(4, "102.25")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(root, "AAPL_D.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"Date,Open,High,Low,Close,Volume\n"+
			"2024-03-01,101.5,101.5,101.5,101.5,1000\n"+
			"2024-03-04,102.25,102.25,102.25,102.25,4000\n",
		string(data))
}

func TestCSVStore_AppendThenLoadRoundTrip(t *testing.T) {
	s := NewCSVStore(t.TempDir(), time.UTC)
	_, err := s.Append("AAPL", model.Daily, []model.Bar{dailyBar(1, "10")})
	require.NoError(t, err)
	_, err = s.Append("AAPL", model.Daily, []model.Bar{dailyBar(2, "11"), dailyBar(3, "12.125")})
	require.NoError(t, err)

	rec, err := s.Load("AAPL", model.Daily)
	require.NoError(t, err)
	require.Equal(t, 3, rec.Len())
	assert.True(t, rec.Bars[2].Close.Equal(decimal.RequireFromString("12.125")))
	assert.Equal(t, int64(3000), rec.Bars[2].Volume)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), last)
	assert.True(t, rec.Contains(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.False(t, rec.Contains(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))

	data, err := os.ReadFile(s.Path("AAPL", model.Daily))
	require.NoError(t, err)
	assert.Equal(t, 1, countOccurrences(string(data), "Date,"), "header written exactly once")
}

func TestCSVStore_AppendEmptyIsNoop(t *testing.T) {
	s := NewCSVStore(t.TempDir(), time.UTC)
	n, err := s.Append("AAPL", model.Daily, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(s.Path("AAPL", model.Daily))
	assert.True(t, os.IsNotExist(err))
}

func TestCSVStore_AppendRejectsUnorderedBars(t *testing.T) {
	s := NewCSVStore(t.TempDir(), time.UTC)
	_, err := s.Append("AAPL", model.Daily, []model.Bar{dailyBar(2, "1"), dailyBar(1, "1")})
	assert.Error(t, err)
	_, err = s.Append("AAPL", model.Daily, []model.Bar{dailyBar(2, "1"), dailyBar(2, "1")})
	assert.Error(t, err)
}

func TestCSVStore_IntradayTimestamps(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	s := NewCSVStore(t.TempDir(), ist)
	bar := model.Bar{
		Time:   time.Date(2024, 3, 15, 9, 15, 0, 0, ist),
		Open:   decimal.NewFromInt(1),
		High:   decimal.NewFromInt(2),
		Low:    decimal.NewFromInt(1),
		Close:  decimal.NewFromInt(2),
		Volume: 10,
	}
	_, err := s.Append("RELIANCE.NS", model.Hourly, []model.Bar{bar})
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path("RELIANCE.NS", model.Hourly))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Datetime,Open,High,Low,Close,Volume\n2024-03-15 09:15:00,")

	rec, err := s.Load("RELIANCE.NS", model.Hourly)
	require.NoError(t, err)
	require.Equal(t, 1, rec.Len())
	assert.True(t, rec.Bars[0].Time.Equal(bar.Time))
}

func TestCSVStore_LoadZonedTimestampsAsLocal(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	s := NewCSVStore(t.TempDir(), ist)
	writeFile(t, s.Path("X", model.Hourly),
		"Datetime,Open,High,Low,Close,Volume\n2024-03-15 03:45:00+00:00,1,1,1,1,5\n")

	rec, err := s.Load("X", model.Hourly)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15 09:15:00", model.Hourly.FormatTimestamp(rec.Bars[0].Time))
}

func TestCSVStore_RepairsIndexColumnName(t *testing.T) {
	s := NewCSVStore(t.TempDir(), time.UTC)
	path := s.Path("AAPL", model.Hourly)
	writeFile(t, path, "Date,Open,High,Low,Close,Volume\n2024-03-15 10:15:00,1,2,0.5,1.5,100\n")

	rec, err := s.Load("AAPL", model.Hourly)
	require.NoError(t, err)
	require.Equal(t, 1, rec.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Datetime,Open,High,Low,Close,Volume\n2024-03-15 10:15:00,1,2,0.5,1.5,100\n", string(data))
}

func TestCSVStore_MalformedIndex(t *testing.T) {
	s := NewCSVStore(t.TempDir(), time.UTC)

	writeFile(t, s.Path("BAD", model.Daily), "Open,High,Low,Close,Volume\n1,1,1,1,1\n")
	_, err := s.Load("BAD", model.Daily)
	var mErr *MalformedSeriesError
	require.True(t, errors.As(err, &mErr))

	writeFile(t, s.Path("BAD2", model.Daily), "Date,Open,High,Low,Close,Volume\nnot-a-date,1,1,1,1,1\n")
	_, err = s.Load("BAD2", model.Daily)
	require.True(t, errors.As(err, &mErr))
	assert.Contains(t, err.Error(), "not-a-date")
}

func TestCSVStore_ForeignColumnOrderIsPreserved(t *testing.T) {
	s := NewCSVStore(t.TempDir(), time.UTC)
	path := s.Path("AAPL", model.Daily)
	writeFile(t, path, "Date,Close,High,Low,Open,Volume\n2024-03-01,4,3,1,2,100\n")

	rec, err := s.Load("AAPL", model.Daily)
	require.NoError(t, err)
	assert.True(t, rec.Bars[0].Open.Equal(decimal.NewFromInt(2)))
	assert.True(t, rec.Bars[0].Close.Equal(decimal.NewFromInt(4)))

	b := dailyBar(4, "0")
	b.Open, b.High, b.Low, b.Close = decimal.NewFromInt(5), decimal.NewFromInt(7), decimal.NewFromInt(4), decimal.NewFromInt(6)
	_, err = s.Append("AAPL", model.Daily, []model.Bar{b})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Date,Close,High,Low,Open,Volume\n2024-03-01,4,3,1,2,100\n2024-03-04,6,7,4,5,4000\n", string(data))
}

func TestCSVStore_EmptyFileIsAbsent(t *testing.T) {
	s := NewCSVStore(t.TempDir(), time.UTC)
	writeFile(t, s.Path("AAPL", model.Daily), "")
	rec, err := s.Load("AAPL", model.Daily)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = s.Append("AAPL", model.Daily, []model.Bar{dailyBar(1, "1")})
	require.NoError(t, err)
	data, err := os.ReadFile(s.Path("AAPL", model.Daily))
	require.NoError(t, err)
	assert.Equal(t, "Date,Open,High,Low,Close,Volume\n2024-03-01,1,1,1,1,1000\n", string(data))
}

func TestCSVStore_AppendAfterUnterminatedLastRow(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVStore(dir, time.UTC)
	path := s.Path("AAPL", model.Daily)
	writeFile(t, path, "Date,Open,High,Low,Close,Volume\n2024-03-01,1,1,1,1,10")

	_, err := s.Append("AAPL", model.Daily, []model.Bar{dailyBar(4, "2")})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Date,Open,High,Low,Close,Volume\n2024-03-01,1,1,1,1,10\n2024-03-04,2,2,2,2,4000\n", string(data))

	rec, err := s.Load("AAPL", model.Daily)
	require.NoError(t, err)
	require.Equal(t, 2, rec.Len())
	assert.Equal(t, "2", rec.Bars[1].Close.String())
}

func TestCSVStore_AppendAfterUnterminatedHeader(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVStore(dir, time.UTC)
	path := s.Path("AAPL", model.Daily)
	writeFile(t, path, "Date,Open,High,Low,Close,Volume")

	_, err := s.Append("AAPL", model.Daily, []model.Bar{dailyBar(4, "2")})
	require.NoError(t, err)

	rec, err := s.Load("AAPL", model.Daily)
	require.NoError(t, err)
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, 4, rec.Bars[0].Time.Day())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
