package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/eosched/internal/client"
	"github.com/me/eosched/internal/config"
	"github.com/me/eosched/internal/planner"
	"github.com/me/eosched/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	PollInterval time.Duration
	CallTimeout  time.Duration // per remote call, 0 disables
	CallRetries  int           // extra GetJobDefinition attempts on transport errors
	RetryBackoff time.Duration // multiplied by the attempt number
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return ConfigFrom(config.DefaultConfig().Scheduler)
}

// ConfigFrom extracts the loop settings from the process configuration.
func ConfigFrom(c config.SchedulerConfig) Config {
	return Config{
		PollInterval: c.PollInterval,
		CallTimeout:  c.CallTimeout,
		CallRetries:  c.CallRetries,
		RetryBackoff: c.RetryBackoff,
	}
}

// ResourceChecker reports whether the host can take on more work.
type ResourceChecker interface {
	Available(ctx context.Context) (bool, error)
}

// Loop implements the Scheduler interface with a timer driven scheduling cycle.
type Loop struct {
	store   TaskStore
	orch    client.Orchestrator
	planner *planner.Planner
	gate    ResourceChecker // optional
	config  Config
	logger  *slog.Logger
	now     func() time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewLoop creates a new scheduler loop. gate may be nil.
func NewLoop(st TaskStore, orch client.Orchestrator, gate ResourceChecker, cfg Config, logger *slog.Logger) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Loop{
		store:   st,
		orch:    orch,
		planner: planner.New(logger),
		gate:    gate,
		config:  cfg,
		logger:  logger.With("component", "scheduler"),
		now:     func() time.Time { return time.Now().UTC() },
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs a cycle immediately, then one per PollInterval. Blocks until ctx
// is cancelled or Stop is called.
// Cycles never overlap: each one finishes before the next tick is taken.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("scheduler started", "poll_interval", l.config.PollInterval)
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	l.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			close(l.doneCh)
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			close(l.doneCh)
			return nil
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the current cycle to finish.
func (l *Loop) Stop() error {
	close(l.stopCh)
	<-l.doneCh
	return nil
}

// RunOnce runs one gated cycle: it is skipped when resources are short.
// Errors and panics are logged and never escape.
func (l *Loop) RunOnce(ctx context.Context) (report TickReport) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("tick panic", "panic", r)
		}
	}()

	if l.gate != nil {
		ok, err := l.gate.Available(ctx)
		if err != nil {
			l.logger.Warn("resource check failed; skipping tick", "error", err)
			return TickReport{Skipped: true}
		}
		if !ok {
			return TickReport{Skipped: true}
		}
	}

	report, err := l.Tick(ctx)
	if err != nil {
		l.logger.Error("tick error", "error", err)
	}
	return report
}

// Tick runs a single scheduling cycle.
func (l *Loop) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	now := l.now()

	// Phase 1: load. Nothing has been mutated yet, so failing here is safe.
	tasks, err := l.store.LoadTasks(ctx)
	if err != nil {
		return report, fmt.Errorf("load tasks: %w", err)
	}
	report.Loaded = len(tasks)

	// Phase 2: recompute and persist next run times before anything is
	// submitted, so a crash mid-cycle cannot replay a passed run time.
	tasks = l.planner.ComputeNextRunTime(tasks)
	if err := l.store.UpdateTaskStatuses(ctx, tasks); err != nil {
		return report, fmt.Errorf("persist next run times: %w", err)
	}

	// Phase 3: ready list in priority order.
	ready := l.planner.OrderByPriority(l.planner.ExtractReadyList(tasks, now))
	report.Ready = len(ready)
	if len(ready) == 0 {
		return report, nil
	}
	l.logger.Debug("ready tasks", "count", len(ready))

	// Phase 4: evaluate until one job has been submitted.
	var cycleErr error
	for _, task := range ready {
		outcome, stop, err := l.evaluate(ctx, task, now)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Outcome == OutcomeSubmitted || outcome.Outcome == OutcomeExecuted {
			report.Submitted++
		}
		if err != nil {
			cycleErr = fmt.Errorf("task %d: %w", task.TaskID, err)
			break
		}
		if stop {
			break
		}
	}

	// Phase 5: persist every ready task, acted upon or not.
	if err := l.store.UpdateTaskStatuses(ctx, ready); err != nil {
		persistErr := fmt.Errorf("persist task statuses: %w", err)
		if cycleErr == nil {
			return report, persistErr
		}
		l.logger.Error("persist task statuses", "error", err)
	}
	return report, cycleErr
}

// evaluate asks the orchestrator about one task and applies the scheduling
// flags. stop is true once a job was submitted. A non-nil error is a failed
// remote call and ends the cycle.
func (l *Loop) evaluate(ctx context.Context, task *model.ScheduledTask, now time.Time) (TaskOutcome, bool, error) {
	outcome := TaskOutcome{TaskID: task.TaskID}
	runTime := task.Status.NextScheduledRunTime
	log := l.logger.With("task_id", task.TaskID, "task_name", task.TaskName, "run_time", runTime)

	req, err := BuildProcessingRequest(task)
	if err != nil {
		log.Warn("cannot build processing request", "error", err)
		outcome.Outcome = OutcomeBadParameters
		return outcome, false, nil
	}

	def, err := l.getJobDefinition(ctx, req)
	if err != nil {
		outcome.Outcome = OutcomeError
		return outcome, false, fmt.Errorf("get job definition: %w", err)
	}

	dec, err := def.Decision()
	if err != nil {
		// An unreadable decision is handled like isValid=false.
		log.Warn("unreadable scheduling decision", "error", err)
	}
	if err != nil || !dec.IsValid {
		task.Status.MarkRetry(now)
		log.Info("job definition invalid; will retry")
		outcome.Outcome = OutcomeInvalid
		return outcome, false, nil
	}
	outcome.Flags = dec.SchedulingFlags

	switch dec.SchedulingFlags {
	case model.ScheduleNext:
		if err := l.submitJob(ctx, def); err != nil {
			outcome.Outcome = OutcomeError
			return outcome, true, fmt.Errorf("submit job: %w", err)
		}
		task.Status.AdvanceTo(runTime)
		log.Info("job submitted")
		outcome.Outcome = OutcomeSubmitted
		return outcome, true, nil

	case model.RetryLater:
		log.Info("orchestrator asked to retry later")
		outcome.Outcome = OutcomeRetryLater
		return outcome, false, nil

	case model.NoopAndScheduleNext:
		task.Status.AdvanceTo(runTime)
		log.Info("run skipped; schedule advanced")
		outcome.Outcome = OutcomeAdvanced
		return outcome, false, nil

	case model.ExecAndNoScheduleNext:
		if err := l.submitJob(ctx, def); err != nil {
			outcome.Outcome = OutcomeError
			return outcome, true, fmt.Errorf("submit job: %w", err)
		}
		log.Info("job submitted; schedule kept")
		outcome.Outcome = OutcomeExecuted
		return outcome, true, nil
	}

	// Decision() only yields known flags for valid definitions.
	outcome.Outcome = OutcomeInvalid
	return outcome, false, nil
}

// getJobDefinition retries transport failures; the call has no side effects
// on the orchestrator.
func (l *Loop) getJobDefinition(ctx context.Context, req model.ProcessingRequest) (model.JobDefinition, error) {
	var lastErr error
	for attempt := 0; attempt <= l.config.CallRetries; attempt++ {
		if attempt > 0 {
			l.logger.Warn("retrying GetJobDefinition", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return model.JobDefinition{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * l.config.RetryBackoff):
			}
		}

		callCtx, cancel := l.callContext(ctx)
		def, err := l.orch.GetJobDefinition(callCtx, req)
		cancel()
		if err == nil {
			return def, nil
		}
		lastErr = err
		if !model.IsRetryable(err) {
			break
		}
	}
	return model.JobDefinition{}, lastErr
}

// submitJob is never retried: a timed-out submission may have reached the
// orchestrator, and a second one would break the one-job-per-cycle rule.
func (l *Loop) submitJob(ctx context.Context, def model.JobDefinition) error {
	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	return l.orch.SubmitJob(callCtx, def)
}

func (l *Loop) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.config.CallTimeout > 0 {
		return context.WithTimeout(ctx, l.config.CallTimeout)
	}
	return context.WithCancel(ctx)
}
