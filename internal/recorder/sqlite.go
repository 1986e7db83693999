package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"MarketSync/internal/model"
)

// SQLiteRecorder persists sync history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while a pass is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sync_runs (
			run_id      TEXT PRIMARY KEY,
			provider    TEXT,
			source      TEXT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			updated     INTEGER,
			failed      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON sync_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS sync_outcomes (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL REFERENCES sync_runs(run_id),
			ticker       TEXT NOT NULL,
			granularity  TEXT NOT NULL,
			status       TEXT NOT NULL,
			rows_written INTEGER,
			reason       TEXT,
			window_start TEXT,
			window_end   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_series ON sync_outcomes(ticker, granularity)`,

		`CREATE TABLE IF NOT EXISTS rsi_alerts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			ticker      TEXT NOT NULL,
			granularity TEXT NOT NULL,
			bar_time    TEXT,
			close       REAL,
			rsi         REAL,
			zone        TEXT,
			previous    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON rsi_alerts(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run and its outcomes in one transaction.
func (r *SQLiteRecorder) RecordRun(run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated, failed := 0, 0
	for _, o := range run.Outcomes {
		switch o.Outcome.Status {
		case model.StatusUpdated:
			updated++
		case model.StatusFailed:
			failed++
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO sync_runs
		(run_id, provider, source, started_at, finished_at, updated, failed)
		VALUES (?,?,?,?,?,?,?)`,
		run.RunID, run.Provider, run.Source,
		run.StartedAt.Unix(), run.FinishedAt.Unix(), updated, failed,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, o := range run.Outcomes {
		var start, end string
		if !o.Outcome.Window.Start.IsZero() {
			start = o.Granularity.FormatTimestamp(o.Outcome.Window.Start)
			end = o.Granularity.FormatTimestamp(o.Outcome.Window.End)
		}
		if _, err := tx.Exec(`INSERT INTO sync_outcomes
			(run_id, ticker, granularity, status, rows_written, reason, window_start, window_end)
			VALUES (?,?,?,?,?,?,?,?)`,
			run.RunID, o.Ticker, string(o.Granularity), string(o.Outcome.Status),
			o.Outcome.Count, o.Outcome.Reason, start, end,
		); err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Ticker, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordAlert(a *model.RSIAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rd := a.Reading
	_, err := r.db.Exec(`INSERT INTO rsi_alerts
		(timestamp, ticker, granularity, bar_time, close, rsi, zone, previous)
		VALUES (?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), rd.Ticker, string(rd.Granularity),
		rd.Granularity.FormatTimestamp(rd.Time), rd.Close, rd.RSI,
		string(a.Zone), string(a.Previous),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
