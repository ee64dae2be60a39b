package history

import "time"

// Outcome is the final state of a run.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Counts summarizes the records and mappings a run handled.
type Counts struct {
	Records   int `json:"records"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
	Mappings  int `json:"mappings"`
	Added     int `json:"added"`
	Failed    int `json:"failed"`
}

// Run is one persisted pipeline execution. No record or mapping content is kept.
type Run struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	SearchStatus string    `json:"search_status,omitempty"`
	Outcome      Outcome   `json:"outcome"`
	FailureKind  string    `json:"failure_kind,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	DryRun       bool      `json:"dry_run"`
	Counts
}

// Duration returns the run length, or zero while the run is in progress.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
