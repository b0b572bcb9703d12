package model

import "fmt"

// RepeatType is the recurrence rule of a ScheduledTask.
type RepeatType string

const (
	RepeatOnce   RepeatType = "once"
	RepeatCyclic RepeatType = "cyclic"
	RepeatOnDate RepeatType = "on_date"
	RepeatCron   RepeatType = "cron"
)

// String returns the string representation of the repeat type.
func (r RepeatType) String() string {
	return string(r)
}

// Valid returns true for the known repeat types.
func (r RepeatType) Valid() bool {
	switch r {
	case RepeatOnce, RepeatCyclic, RepeatOnDate, RepeatCron:
		return true
	}
	return false
}

// SchedulingFlags is the orchestrator's verdict on a processing request.
type SchedulingFlags string

const (
	// ScheduleNext submits the job and advances the task schedule.
	ScheduleNext SchedulingFlags = "SCHEDULE_NEXT"
	// RetryLater leaves the task untouched so the same run time is retried.
	RetryLater SchedulingFlags = "RETRY_LATER"
	// NoopAndScheduleNext advances the schedule without submitting a job.
	NoopAndScheduleNext SchedulingFlags = "NOOP_AND_SCHEDULE_NEXT"
	// ExecAndNoScheduleNext submits the job without advancing the schedule.
	ExecAndNoScheduleNext SchedulingFlags = "EXEC_AND_NO_SCHEDULE_NEXT"
)

// String returns the string representation of the flags.
func (f SchedulingFlags) String() string {
	return string(f)
}

// Submits returns true if a job is submitted for these flags.
func (f SchedulingFlags) Submits() bool {
	return f == ScheduleNext || f == ExecAndNoScheduleNext
}

// Advances returns true if the task schedule moves on for these flags.
func (f SchedulingFlags) Advances() bool {
	return f == ScheduleNext || f == NoopAndScheduleNext
}

// ParseSchedulingFlags validates a wire value.
func ParseSchedulingFlags(s string) (SchedulingFlags, error) {
	switch f := SchedulingFlags(s); f {
	case ScheduleNext, RetryLater, NoopAndScheduleNext, ExecAndNoScheduleNext:
		return f, nil
	}
	return "", fmt.Errorf("unknown scheduling flags %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *SchedulingFlags) UnmarshalText(b []byte) error {
	v, err := ParseSchedulingFlags(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// JobState is the lifecycle state of a Job.
type JobState string

const (
	JobStateSubmitted JobState = "SUBMITTED"
	JobStateRunning   JobState = "RUNNING"
	JobStatePaused    JobState = "PAUSED"
	JobStateCancelled JobState = "CANCELLED"
)

// IsTerminal returns true if the job is in a final state.
func (s JobState) IsTerminal() bool {
	return s == JobStateCancelled
}

// ValidJobTransitions defines the allowed state transitions for Jobs.
var ValidJobTransitions = map[JobState][]JobState{
	JobStateSubmitted: {JobStateRunning, JobStateCancelled},
	JobStateRunning:   {JobStatePaused, JobStateCancelled},
	JobStatePaused:    {JobStateRunning, JobStateCancelled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s JobState) CanTransitionTo(next JobState) bool {
	for _, allowed := range ValidJobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StepState is the lifecycle state of a queued Step.
type StepState string

const (
	StepStateQueued    StepState = "QUEUED"
	StepStateCancelled StepState = "CANCELLED"
)
