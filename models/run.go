package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one pipeline invocation. Stopped means the run budget or an external
// stop signal ended it early; that is a planned outcome, not a failure.
type Run struct {
	ID               int64      `json:"id" db:"id"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time `json:"finished_at" db:"finished_at"`
	Status           RunStatus  `json:"status" db:"status"`
	ListingsFound    int        `json:"listings_found" db:"listings_found"`
	ListingsCreated  int        `json:"listings_created" db:"listings_created"`
	ListingsExisting int        `json:"listings_existing" db:"listings_existing"`
	ListingsSkipped  int        `json:"listings_skipped" db:"listings_skipped"`
	ListingsRejected int        `json:"listings_rejected" db:"listings_rejected"`
	ContactAttempts  int        `json:"contact_attempts" db:"contact_attempts"`
	ContactsCreated  int        `json:"contacts_created" db:"contacts_created"`
	ContactsLinked   int        `json:"contacts_linked" db:"contacts_linked"`
	ErrorsCount      int        `json:"errors_count" db:"errors_count"`
	Notes            string     `json:"notes" db:"notes"`
}
