// Package planner decides when scheduled tasks run next, which of them are
// due, and in what order they are evaluated. It performs no I/O.
package planner

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/me/eosched/pkg/model"
)

// Planner computes task readiness and priority.
type Planner struct {
	logger *slog.Logger
	parser cron.Parser
}

// New creates a Planner.
func New(logger *slog.Logger) *Planner {
	return &Planner{
		logger: logger.With("component", "planner"),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// ComputeNextRunTime sets Status.NextScheduledRunTime on every task from its
// repeat rule and last successful run, and returns the tasks it could
// compute. Malformed tasks are logged and left out of the result.
// Running it again on the same tasks changes nothing.
func (p *Planner) ComputeNextRunTime(tasks []*model.ScheduledTask) []*model.ScheduledTask {
	valid := make([]*model.ScheduledTask, 0, len(tasks))
	for _, task := range tasks {
		if task == nil {
			continue
		}
		next, err := p.derive(task)
		if err != nil {
			p.logger.Warn("skipping malformed task", "task_id", task.TaskID, "task_name", task.TaskName, "error", err)
			continue
		}
		if next.After(task.Status.NextScheduledRunTime) {
			task.Status.NextScheduledRunTime = next
		}
		valid = append(valid, task)
	}
	return valid
}

// derive returns the run time the repeat rule yields after the last
// successful run, or the first run time when there is none.
func (p *Planner) derive(task *model.ScheduledTask) (time.Time, error) {
	if !task.RepeatType.Valid() {
		return time.Time{}, fmt.Errorf("unknown repeat type %q", task.RepeatType)
	}

	var sched cron.Schedule
	switch task.RepeatType {
	case model.RepeatCyclic:
		if task.RepeatAfterDays <= 0 {
			return time.Time{}, fmt.Errorf("cyclic task needs a positive repeat_after_days, got %d", task.RepeatAfterDays)
		}
	case model.RepeatOnDate:
		if task.RepeatOnMonthDay < 1 || task.RepeatOnMonthDay > 31 {
			return time.Time{}, fmt.Errorf("repeat_on_month_day %d out of range", task.RepeatOnMonthDay)
		}
	case model.RepeatCron:
		s, err := p.parser.Parse(task.CronSpec)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron spec %q: %w", task.CronSpec, err)
		}
		sched = s
	}

	last := task.Status.LastSuccessfulScheduledRun
	if last.IsZero() {
		if task.FirstRunTime.IsZero() {
			return time.Time{}, fmt.Errorf("first_run_time required")
		}
		return task.FirstRunTime, nil
	}

	switch task.RepeatType {
	case model.RepeatCyclic:
		return last.AddDate(0, 0, task.RepeatAfterDays), nil
	case model.RepeatOnDate:
		return nextMonthDay(last, task.RepeatOnMonthDay, task.FirstRunTime), nil
	case model.RepeatCron:
		return sched.Next(last), nil
	default:
		// once: finished after its first success.
		return last, nil
	}
}

// nextMonthDay returns day of the month after last, clamped to the length
// of that month, at the time of day of ref.
func nextMonthDay(last time.Time, day int, ref time.Time) time.Time {
	loc := last.Location()
	if !ref.IsZero() {
		ref = ref.In(loc)
	} else {
		ref = last
	}
	first := time.Date(last.Year(), last.Month()+1, 1, 0, 0, 0, 0, loc)
	if n := daysIn(first.Year(), first.Month(), loc); day > n {
		day = n
	}
	return time.Date(first.Year(), first.Month(), day, ref.Hour(), ref.Minute(), ref.Second(), 0, loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// ExtractReadyList returns the tasks due at now: the next run time has
// arrived, the task has not already succeeded for it, and it is not inside
// its retry period. The input slice is not modified.
func (p *Planner) ExtractReadyList(tasks []*model.ScheduledTask, now time.Time) []*model.ScheduledTask {
	var ready []*model.ScheduledTask
	for _, task := range tasks {
		if IsReady(task, now) {
			ready = append(ready, task)
		}
	}
	return ready
}

// IsReady reports whether a single task is due at now.
func IsReady(task *model.ScheduledTask, now time.Time) bool {
	next := task.Status.NextScheduledRunTime
	if next.IsZero() || next.After(now) {
		return false
	}
	if task.Status.HasRunFor(next) {
		return false
	}
	return !inRetryPeriod(task, now)
}

func inRetryPeriod(task *model.ScheduledTask, now time.Time) bool {
	st := task.Status
	if task.RetryPeriod <= 0 || st.LastRetryTime.IsZero() || st.LastRetryTime.Before(st.NextScheduledRunTime) {
		return false
	}
	return now.Before(st.LastRetryTime.Add(task.RetryPeriod))
}

// OrderByPriority returns the tasks sorted by ascending Priority (lower is
// more urgent), ties broken by ascending TaskID. The sort is stable.
func (p *Planner) OrderByPriority(ready []*model.ScheduledTask) []*model.ScheduledTask {
	ordered := make([]*model.ScheduledTask, len(ready))
	copy(ordered, ready)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].TaskID < ordered[j].TaskID
	})
	return ordered
}
