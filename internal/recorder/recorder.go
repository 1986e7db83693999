package recorder

import (
	"time"

	"MarketSync/internal/model"
)

// OutcomeRecord is the result of syncing one ticker at one granularity.
type OutcomeRecord struct {
	Ticker      string
	Granularity model.Granularity
	Outcome     model.SyncOutcome
}

// RunRecord holds everything recorded about one sync pass.
type RunRecord struct {
	RunID      string
	Provider   string
	Source     string // "cron", "command", "once"
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []OutcomeRecord
}

// Recorder persists sync and alert history for analysis.
type Recorder interface {
	RecordRun(run *RunRecord) error
	RecordAlert(alert *model.RSIAlert) error
	Close() error
}
