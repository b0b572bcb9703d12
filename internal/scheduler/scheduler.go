package scheduler

import (
	"context"

	"github.com/me/eosched/pkg/model"
)

// Scheduler periodically evaluates scheduled tasks against the orchestrator.
type Scheduler interface {
	// Start begins the scheduling loop. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler.
	Stop() error

	// Tick runs a single scheduling cycle without the resource check.
	Tick(ctx context.Context) (TickReport, error)
}

// TaskStore is the persistence the scheduler needs.
type TaskStore interface {
	LoadTasks(ctx context.Context) ([]*model.ScheduledTask, error)
	UpdateTaskStatuses(ctx context.Context, tasks []*model.ScheduledTask) error
}

// Outcome is what a cycle did with one ready task.
type Outcome string

const (
	OutcomeSubmitted     Outcome = "submitted"      // SCHEDULE_NEXT
	OutcomeRetryLater    Outcome = "retry_later"    // RETRY_LATER
	OutcomeAdvanced      Outcome = "advanced"       // NOOP_AND_SCHEDULE_NEXT
	OutcomeExecuted      Outcome = "executed"       // EXEC_AND_NO_SCHEDULE_NEXT
	OutcomeInvalid       Outcome = "invalid"        // isValid=false or unreadable decision
	OutcomeError         Outcome = "error"          // remote call failed
	OutcomeBadParameters Outcome = "bad_parameters" // request could not be built
)

// TaskOutcome records the handling of one ready task.
type TaskOutcome struct {
	TaskID  int                   `json:"task_id"`
	Outcome Outcome               `json:"outcome"`
	Flags   model.SchedulingFlags `json:"flags,omitempty"`
}

// TickReport summarizes one scheduling cycle.
type TickReport struct {
	Skipped   bool          `json:"skipped"` // resources unavailable
	Loaded    int           `json:"loaded"`
	Ready     int           `json:"ready"`
	Submitted int           `json:"submitted"`
	Outcomes  []TaskOutcome `json:"outcomes,omitempty"`
}
