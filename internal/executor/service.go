// Package executor keeps the executor's book of jobs and queued steps.
// Steps are recorded, not run.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/eosched/internal/client"
	"github.com/me/eosched/pkg/model"
)

// JobStore is the persistence the executor needs.
type JobStore interface {
	GetJob(ctx context.Context, id int) (*model.Job, error)
	ListJobs(ctx context.Context) ([]*model.Job, error)
	UpdateJobState(ctx context.Context, id int, state model.JobState) error
	CreateSteps(ctx context.Context, steps []model.StepDescriptor) ([]*model.Step, error)
	CancelStepsByTask(ctx context.Context, taskIDs []int) (int64, error)
}

// Service implements the executor operations.
type Service struct {
	store  JobStore
	orch   client.Orchestrator // optional
	logger *slog.Logger
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithOrchestrator makes the service notify the orchestrator whenever a job
// or step changes.
func WithOrchestrator(orch client.Orchestrator) Option {
	return func(s *Service) {
		s.orch = orch
	}
}

// New creates a Service.
func New(st JobStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: logger.With("component", "executor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitJob starts a submitted job.
func (s *Service) SubmitJob(ctx context.Context, jobID int) error {
	return s.transition(ctx, jobID, model.JobStateRunning)
}

// StartPending starts every job still SUBMITTED, such as jobs whose
// hand-off from the orchestrator failed, and returns how many it started.
func (s *Service) StartPending(ctx context.Context) (int, error) {
	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}
	started := 0
	for _, job := range jobs {
		if job.State != model.JobStateSubmitted {
			continue
		}
		if err := s.transition(ctx, job.ID, model.JobStateRunning); err != nil {
			return started, err
		}
		started++
	}
	if started > 0 {
		s.logger.Info("pending jobs started", "count", started)
	}
	return started, nil
}

// CancelJob cancels a job.
func (s *Service) CancelJob(ctx context.Context, jobID int) error {
	return s.transition(ctx, jobID, model.JobStateCancelled)
}

// PauseJob pauses a running job.
func (s *Service) PauseJob(ctx context.Context, jobID int) error {
	return s.transition(ctx, jobID, model.JobStatePaused)
}

// ResumeJob resumes a paused job.
func (s *Service) ResumeJob(ctx context.Context, jobID int) error {
	return s.transition(ctx, jobID, model.JobStateRunning)
}

// SubmitSteps queues steps.
func (s *Service) SubmitSteps(ctx context.Context, steps []model.StepDescriptor) error {
	if len(steps) == 0 {
		return nil
	}
	queued, err := s.store.CreateSteps(ctx, steps)
	if err != nil {
		return fmt.Errorf("queue steps: %w", err)
	}
	for _, st := range queued {
		s.logger.Info("step queued", "step_id", st.ID, "task_id", st.TaskID, "step", st.StepName, "processor_path", st.ProcessorPath)
	}
	s.notify(ctx)
	return nil
}

// CancelTasks cancels the queued steps of the given tasks.
func (s *Service) CancelTasks(ctx context.Context, taskIDs []int) error {
	n, err := s.store.CancelStepsByTask(ctx, taskIDs)
	if err != nil {
		return fmt.Errorf("cancel steps: %w", err)
	}
	s.logger.Info("tasks cancelled", "task_ids", taskIDs, "steps", n)
	if n > 0 {
		s.notify(ctx)
	}
	return nil
}

// transition moves a job to next. Unknown jobs and transitions the job's
// state does not allow are logged and ignored.
func (s *Service) transition(ctx context.Context, jobID int, next model.JobState) error {
	log := s.logger.With("job_id", jobID, "to", next)

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job %d: %w", jobID, err)
	}
	if job == nil {
		log.Warn("unknown job ignored")
		return nil
	}
	if !job.State.CanTransitionTo(next) {
		log.Warn("invalid job transition ignored", "from", job.State)
		return nil
	}

	if err := s.store.UpdateJobState(ctx, jobID, next); err != nil {
		return fmt.Errorf("update job %d: %w", jobID, err)
	}
	log.Info("job state changed", "from", job.State)
	s.notify(ctx)
	return nil
}

// notify tells the orchestrator new events are waiting. A failure is
// logged: the local change already happened.
func (s *Service) notify(ctx context.Context) {
	if s.orch == nil {
		return
	}
	if err := s.orch.NotifyEventsAvailable(ctx); err != nil {
		s.logger.Warn("notify orchestrator", "error", err)
	}
}
