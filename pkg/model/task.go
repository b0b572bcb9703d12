package model

import (
	"encoding/json"
	"time"
)

// ScheduledTask is a recurring processing task configured for one site.
// Records are owned by the store; the scheduler loads them fresh each cycle.
type ScheduledTask struct {
	TaskID      int        `json:"task_id"`
	TaskName    string     `json:"task_name"`
	ProcessorID int        `json:"processor_id"`
	SiteID      int        `json:"site_id"`
	SeasonID    int        `json:"season_id"`
	RepeatType  RepeatType `json:"repeat_type"`
	Priority    int        `json:"priority"`

	// FirstRunTime is the run time used before the task ever succeeded.
	FirstRunTime time.Time `json:"first_run_time"`

	// RepeatAfterDays is the period of a cyclic task.
	RepeatAfterDays int `json:"repeat_after_days,omitempty"`

	// RepeatOnMonthDay is the day of month an on_date task runs on.
	RepeatOnMonthDay int `json:"repeat_on_month_day,omitempty"`

	// CronSpec is a standard five-field cron expression for cron tasks.
	CronSpec string `json:"cron_spec,omitempty"`

	// RetryPeriod is the minimum delay between two evaluations of a task
	// whose job definition came back invalid.
	RetryPeriod time.Duration `json:"retry_period,omitempty"`

	// ProcessorParameters is the processor specific configuration, passed
	// through to the orchestrator untouched.
	ProcessorParameters json.RawMessage `json:"processor_parameters,omitempty"`

	Status TaskStatus `json:"status"`
}

// TaskStatus is the mutable scheduling state of a ScheduledTask.
// None of the timestamps ever move backward.
type TaskStatus struct {
	NextScheduledRunTime       time.Time `json:"next_scheduled_run_time"`
	LastSuccessfulTimestamp    time.Time `json:"last_successful_timestamp"`
	LastSuccessfulScheduledRun time.Time `json:"last_successful_scheduled_run"`
	LastRetryTime              time.Time `json:"last_retry_time"`
}

// HasRunFor reports whether the task already succeeded for the given run time.
func (s TaskStatus) HasRunFor(runTime time.Time) bool {
	return !s.LastSuccessfulScheduledRun.IsZero() && !s.LastSuccessfulScheduledRun.Before(runTime)
}

// AdvanceTo records a successful scheduling decision for runTime.
func (s *TaskStatus) AdvanceTo(runTime time.Time) {
	s.LastSuccessfulScheduledRun = latest(s.LastSuccessfulScheduledRun, runTime)
	s.LastSuccessfulTimestamp = latest(s.LastSuccessfulTimestamp, runTime)
}

// MarkRetry records an evaluation that must be retried later.
func (s *TaskStatus) MarkRetry(now time.Time) {
	s.LastRetryTime = latest(s.LastRetryTime, now)
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
