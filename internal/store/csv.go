package store

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"MarketSync/internal/model"
)

// valueColumns is the fixed column order written after the index.
var valueColumns = []string{"Open", "High", "Low", "Close", "Volume"}

// indexAliases are first-column names accepted as the index and repaired to
// the granularity's canonical name.
var indexAliases = map[string]bool{"": true, "Date": true, "Datetime": true, "Timestamp": true}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05Z07:00",
}

// CSVStore keeps one CSV file per (ticker, granularity) under Root.
type CSVStore struct {
	Root     string
	Location *time.Location // exchange location of the naive timestamps
}

// NewCSVStore creates a store rooted at root. A nil location means UTC.
func NewCSVStore(root string, loc *time.Location) *CSVStore {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVStore{Root: root, Location: loc}
}

// Path returns the file backing a series, e.g. data/raw/AAPL_60m.csv.
func (s *CSVStore) Path(ticker string, g model.Granularity) string {
	return filepath.Join(s.Root, fmt.Sprintf("%s_%s.csv", ticker, g.Suffix()))
}

// Load reads a stored series. A missing or empty file yields nil, nil.
func (s *CSVStore) Load(ticker string, g model.Granularity) (*model.SeriesRecord, error) {
	path := s.Path(ticker, g)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read series: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, &MalformedSeriesError{Path: path, Reason: "unreadable header", Err: err}
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	if header[0] != g.IndexColumn() {
		if !indexAliases[header[0]] {
			return nil, &MalformedSeriesError{Path: path, Reason: fmt.Sprintf("missing index column %q, found %q", g.IndexColumn(), header[0])}
		}
		if err := s.repairIndexColumn(path, data, g); err != nil {
			return nil, fmt.Errorf("repair index column: %w", err)
		}
		log.Printf("[INFO] %s: renamed index column %q to %q", path, header[0], g.IndexColumn())
		header[0] = g.IndexColumn()
	}

	cols, err := locateColumns(header)
	if err != nil {
		return nil, &MalformedSeriesError{Path: path, Reason: err.Error()}
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &MalformedSeriesError{Path: path, Reason: fmt.Sprintf("line %d", line), Err: err}
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		bar, err := s.parseRow(g, row, cols)
		if err != nil {
			return nil, &MalformedSeriesError{Path: path, Reason: fmt.Sprintf("line %d", line), Err: err}
		}
		bars = append(bars, bar)
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			log.Printf("[WARN] %s: rows out of order at %s", path, g.FormatTimestamp(bars[i].Time))
			break
		}
	}
	return model.NewSeriesRecord(ticker, g, bars), nil
}

// Append writes bars at the end of the series file, creating it with a header
// when needed. Existing rows are never reordered.
func (s *CSVStore) Append(ticker string, g model.Granularity, bars []model.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return 0, fmt.Errorf("append %s %s: bars not strictly ascending at %s",
				ticker, g, g.FormatTimestamp(bars[i].Time))
		}
	}

	path := s.Path(ticker, g)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create data dir: %w", err)
	}

	columns, unterminated, err := existingColumns(path)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	if unterminated {
		if _, err := f.WriteString("\n"); err != nil {
			return 0, fmt.Errorf("terminate last row: %w", err)
		}
	}

	w := csv.NewWriter(f)
	if columns == nil {
		columns = append([]string{g.IndexColumn()}, valueColumns...)
		if err := w.Write(columns); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
	}
	for _, b := range bars {
		if err := w.Write(formatRow(g, b, columns)); err != nil {
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush series: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close series: %w", err)
	}
	return len(bars), nil
}

// existingColumns returns the header of a non-empty file, or nil when the
// file is missing or empty. unterminated reports a non-empty file whose last
// row lacks a trailing newline.
func existingColumns(path string) (header []string, unterminated bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, false, fmt.Errorf("read header: %w", err)
	}
	if strings.TrimSpace(line) == "" {
		return nil, false, nil
	}
	header, err = csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, false, &MalformedSeriesError{Path: path, Reason: "unreadable header", Err: err}
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	info, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("stat series: %w", err)
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return nil, false, fmt.Errorf("read last byte: %w", err)
	}
	return header, last[0] != '\n', nil
}

func (s *CSVStore) repairIndexColumn(path string, data []byte, g model.Granularity) error {
	first, rest := data, []byte(nil)
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first, rest = data[:i], data[i:]
	}
	header, err := csv.NewReader(bytes.NewReader(first)).Read()
	if err != nil {
		return err
	}
	header[0] = g.IndexColumn()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	out := append(bytes.TrimRight(buf.Bytes(), "\n"), rest...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

type columnIndex struct {
	open, high, low, close, volume int
}

func locateColumns(header []string) (columnIndex, error) {
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	var cols columnIndex
	targets := []*int{&cols.open, &cols.high, &cols.low, &cols.close, &cols.volume}
	for i, name := range valueColumns {
		pos, ok := idx[name]
		if !ok || pos == 0 {
			return cols, fmt.Errorf("missing column %q", name)
		}
		*targets[i] = pos
	}
	return cols, nil
}

func (s *CSVStore) parseRow(g model.Granularity, row []string, cols columnIndex) (model.Bar, error) {
	ts, err := s.parseTimestamp(g, row[0])
	if err != nil {
		return model.Bar{}, err
	}
	bar := model.Bar{Time: ts}
	prices := []struct {
		dst *decimal.Decimal
		pos int
	}{
		{&bar.Open, cols.open}, {&bar.High, cols.high}, {&bar.Low, cols.low}, {&bar.Close, cols.close},
	}
	for _, p := range prices {
		v, err := parseDecimal(cell(row, p.pos))
		if err != nil {
			return model.Bar{}, err
		}
		*p.dst = v
	}
	vol, err := parseDecimal(cell(row, cols.volume))
	if err != nil {
		return model.Bar{}, err
	}
	bar.Volume = vol.IntPart()
	return bar, nil
}

func (s *CSVStore) parseTimestamp(g model.Granularity, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return g.Normalize(t.In(s.Location)), nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, s.Location); err == nil {
			return g.Normalize(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", v)
}

func cell(row []string, pos int) string {
	if pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

func parseDecimal(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, errors.New("unparsable number " + strconv.Quote(v))
	}
	return d, nil
}

func formatRow(g model.Granularity, b model.Bar, columns []string) []string {
	row := make([]string, len(columns))
	row[0] = g.FormatTimestamp(b.Time)
	for i := 1; i < len(columns); i++ {
		switch strings.TrimSpace(columns[i]) {
		case "Open":
			row[i] = b.Open.String()
		case "High":
			row[i] = b.High.String()
		case "Low":
			row[i] = b.Low.String()
		case "Close":
			row[i] = b.Close.String()
		case "Volume":
			row[i] = strconv.FormatInt(b.Volume, 10)
		}
	}
	return row
}
