package model

import "fmt"

// OutcomeStatus classifies the result of syncing one ticker.
type OutcomeStatus string

const (
	StatusUpToDate  OutcomeStatus = "UP_TO_DATE"
	StatusUpdated   OutcomeStatus = "UPDATED"
	StatusNoNewData OutcomeStatus = "NO_NEW_DATA"
	StatusFailed    OutcomeStatus = "FAILED"
)

// SyncOutcome is the per-ticker result of a sync pass.
type SyncOutcome struct {
	Status OutcomeStatus
	Count  int
	Reason string
	Window SyncWindow
}

func UpToDate(n int) SyncOutcome { return SyncOutcome{Status: StatusUpToDate, Count: n} }

func Updated(n int) SyncOutcome { return SyncOutcome{Status: StatusUpdated, Count: n} }

func NoNewData() SyncOutcome { return SyncOutcome{Status: StatusNoNewData} }

func Failed(reason string) SyncOutcome { return SyncOutcome{Status: StatusFailed, Reason: reason} }

// Failed reports whether the outcome is a failure.
func (o SyncOutcome) Failed() bool { return o.Status == StatusFailed }

func (o SyncOutcome) String() string {
	switch o.Status {
	case StatusFailed:
		return fmt.Sprintf("%s(%s)", o.Status, o.Reason)
	case StatusNoNewData:
		return string(o.Status)
	default:
		return fmt.Sprintf("%s(%d)", o.Status, o.Count)
	}
}
