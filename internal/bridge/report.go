package bridge

import (
	"fmt"
	"time"

	"lr2ise/internal/history"
	"lr2ise/internal/mapping"
)

// Outcome is the publish result for a single mapping.
type Outcome struct {
	Mapping mapping.IdentityMapping `json:"mapping"`
	Added   bool                    `json:"added"`
	DryRun  bool                    `json:"dry_run,omitempty"`
	Reason  string                  `json:"reason,omitempty"`
}

// Line renders the outcome the way the run command prints it on stdout.
func (o Outcome) Line() string {
	switch {
	case o.DryRun:
		return fmt.Sprintf("would add %s agent=%q at=%s", o.Mapping, o.Mapping.Agent, o.Mapping.Timestamp)
	case o.Added:
		return fmt.Sprintf("added %s agent=%q at=%s", o.Mapping, o.Mapping.Agent, o.Mapping.Timestamp)
	default:
		return fmt.Sprintf("failed %s: %s", o.Mapping, o.Reason)
	}
}

// Report summarizes a finished run.
type Report struct {
	RunID        string                           `json:"run_id"`
	TaskID       string                           `json:"task_id,omitempty"`
	SearchStatus string                           `json:"search_status,omitempty"`
	DryRun       bool                             `json:"dry_run"`
	StartedAt    time.Time                        `json:"started_at"`
	FinishedAt   time.Time                        `json:"finished_at"`
	Counts       history.Counts                   `json:"counts"`
	Warnings     []mapping.MalformedRecordWarning `json:"-"`
	Outcomes     []Outcome                        `json:"outcomes"`
	FailureKind  string                           `json:"failure_kind,omitempty"`
	Error        string                           `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) historyRun() history.Run {
	outcome := history.OutcomeSucceeded
	if r.Error != "" {
		outcome = history.OutcomeFailed
	}
	return history.Run{
		ID:           r.RunID,
		TaskID:       r.TaskID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		SearchStatus: r.SearchStatus,
		Outcome:      outcome,
		FailureKind:  r.FailureKind,
		ErrorMessage: r.Error,
		DryRun:       r.DryRun,
		Counts:       r.Counts,
	}
}
