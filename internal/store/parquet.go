package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"MarketSync/internal/model"
)

// ParquetBar is the row layout of a Parquet snapshot.
type ParquetBar struct {
	Timestamp string  `parquet:"timestamp"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// SnapshotPath returns dir/{TICKER}_{suffix}.parquet.
func SnapshotPath(dir, ticker string, g model.Granularity) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.parquet", ticker, g.Suffix()))
}

// ExportParquet writes the whole series to path, replacing any previous
// snapshot. The CSV file stays the source of truth.
func ExportParquet(rec *model.SeriesRecord, path string) error {
	if rec == nil || len(rec.Bars) == 0 {
		return nil
	}
	rows := make([]ParquetBar, len(rec.Bars))
	for i, b := range rec.Bars {
		rows[i] = ParquetBar{
			Timestamp: rec.Granularity.FormatTimestamp(b.Time),
			Open:      b.Open.InexactFloat64(),
			High:      b.High.InexactFloat64(),
			Low:       b.Low.InexactFloat64(),
			Close:     b.Close.InexactFloat64(),
			Volume:    b.Volume,
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write parquet: %w", err)
	}
	return os.Rename(tmp, path)
}
