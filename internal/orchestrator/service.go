// Package orchestrator answers scheduler requests with job definitions and
// records submitted jobs.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/me/eosched/internal/client"
	"github.com/me/eosched/pkg/model"
)

// JobStore is the persistence the orchestrator needs.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
}

// Service implements the orchestrator operations.
type Service struct {
	store    JobStore
	registry *Registry
	executor client.Executor // optional
	logger   *slog.Logger
	events   atomic.Int64
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithExecutor forwards submitted jobs to the executor.
func WithExecutor(exec client.Executor) Option {
	return func(s *Service) {
		s.executor = exec
	}
}

// New creates a Service.
func New(st JobStore, reg *Registry, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		registry: reg,
		logger:   logger.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyEventsAvailable records that new events are waiting to be processed.
func (s *Service) NotifyEventsAvailable(ctx context.Context) error {
	n := s.events.Add(1)
	s.logger.Info("events available", "pending", n)
	return nil
}

// PendingEvents returns the number of notifications received so far.
func (s *Service) PendingEvents() int64 {
	return s.events.Load()
}

// GetJobDefinition asks the request's processor for a decision and wraps it
// in a job definition. Requests for unknown processors, or that the
// processor cannot evaluate, get an invalid definition.
func (s *Service) GetJobDefinition(ctx context.Context, req model.ProcessingRequest) (model.JobDefinition, error) {
	log := s.logger.With("processor_id", req.ProcessorID, "site_id", req.SiteID, "run_time", req.ScheduledRunTime())

	body := model.JobBody{
		ProcessorID:      req.ProcessorID,
		SiteID:           req.SiteID,
		ScheduledRunTime: req.TTNextScheduledRunTime,
	}

	proc, err := s.registry.Get(req.ProcessorID)
	if err != nil {
		log.Warn("rejecting request", "error", err)
	} else {
		dec, err := proc.Decide(ctx, req)
		if err != nil {
			log.Warn("processor could not evaluate request", "processor", proc.Name(), "error", err)
		} else {
			body.SchedulingDecision = dec.SchedulingDecision
			body.Parameters = dec.Parameters
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return model.JobDefinition{}, fmt.Errorf("marshal job body: %w", err)
	}
	log.Debug("job definition", "valid", body.IsValid, "flags", body.SchedulingFlags)
	return model.JobDefinition{
		ProcessorID:       req.ProcessorID,
		SiteID:            req.SiteID,
		JobDefinitionJSON: string(data),
	}, nil
}

// SubmitJob records a job for a valid definition and hands it to the
// executor when one is configured. Once the job is recorded the submission
// has succeeded: a failed hand-off is logged and the job stays SUBMITTED
// until the executor starts pending jobs.
func (s *Service) SubmitJob(ctx context.Context, def model.JobDefinition) error {
	dec, err := def.Decision()
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	if !dec.IsValid || !dec.SchedulingFlags.Submits() {
		return fmt.Errorf("submit job: definition does not request execution (valid=%t flags=%q)", dec.IsValid, dec.SchedulingFlags)
	}

	now := time.Now().UTC()
	job := &model.Job{
		ProcessorID: def.ProcessorID,
		SiteID:      def.SiteID,
		Definition:  def.JobDefinitionJSON,
		State:       model.JobStateSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	s.logger.Info("job created", "job_id", job.ID, "processor_id", job.ProcessorID, "site_id", job.SiteID)

	if s.executor == nil {
		return nil
	}
	if err := s.executor.SubmitJob(ctx, job.ID); err != nil {
		s.logger.Warn("executor hand-off deferred", "job_id", job.ID, "error", err)
	}
	return nil
}
