package store

import (
	"context"

	"github.com/me/eosched/pkg/model"
)

// Store defines the persistence layer for scheduled tasks, jobs and steps.
type Store interface {
	// Scheduled tasks
	CreateTask(ctx context.Context, task *model.ScheduledTask) error
	GetTask(ctx context.Context, id int) (*model.ScheduledTask, error)
	LoadTasks(ctx context.Context) ([]*model.ScheduledTask, error)
	UpdateTaskStatuses(ctx context.Context, tasks []*model.ScheduledTask) error
	DeleteTask(ctx context.Context, id int) error

	// Jobs
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id int) (*model.Job, error)
	UpdateJobState(ctx context.Context, id int, state model.JobState) error
	ListJobs(ctx context.Context) ([]*model.Job, error)

	// Executor steps
	CreateSteps(ctx context.Context, steps []model.StepDescriptor) ([]*model.Step, error)
	CancelStepsByTask(ctx context.Context, taskIDs []int) (int64, error)
	ListSteps(ctx context.Context) ([]*model.Step, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
