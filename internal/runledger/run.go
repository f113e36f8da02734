// Package runledger records one entry per aggregation run.
package runledger

import "time"

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial"
)

// Run types.
const (
	TypeScheduled = "scheduled"
	TypeManual    = "manual"
	TypeTest      = "test"
)

type Counters struct {
	EventsProcessed       int `json:"events_processed"`
	ListingsProcessed     int `json:"listings_processed"`
	UsersProcessed        int `json:"users_processed"`
	DevelopmentsProcessed int `json:"developments_processed"`
	LeadsProcessed        int `json:"leads_processed"`
	ListingsInserted      int `json:"listings_inserted"`
	UsersInserted         int `json:"users_inserted"`
	DevelopmentsInserted  int `json:"developments_inserted"`
	LeadsInserted         int `json:"leads_inserted"`
}

type Run struct {
	RunID           string     `json:"run_id"`
	Status          Status     `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	TargetDate      time.Time  `json:"target_date"`
	RunType         string     `json:"run_type"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
	EventsFetched   int        `json:"events_fetched"`
	APICalls        int        `json:"api_calls"`
	Counters        Counters   `json:"counters"`
	LastError       string     `json:"last_error,omitempty"`
	ErrorDetails    string     `json:"error_details,omitempty"`
	ErrorCount      int        `json:"error_count"`
}

// Terminal reports whether the run has finished, successfully or not.
func (r *Run) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed || r.Status == StatusPartial
}
