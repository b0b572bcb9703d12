package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/me/eosched/pkg/model"
)

// Executor is what the orchestrator needs from the executor.
type Executor interface {
	SubmitJob(ctx context.Context, jobID int) error
	CancelJob(ctx context.Context, jobID int) error
	PauseJob(ctx context.Context, jobID int) error
	ResumeJob(ctx context.Context, jobID int) error
	SubmitSteps(ctx context.Context, steps []model.StepDescriptor) error
	CancelTasks(ctx context.Context, taskIDs []int) error
}

// ExecutorClient implements Executor over a Caller.
type ExecutorClient struct {
	caller Caller
}

// NewExecutorClient wraps caller.
func NewExecutorClient(caller Caller) *ExecutorClient {
	return &ExecutorClient{caller: caller}
}

func (c *ExecutorClient) SubmitJob(ctx context.Context, jobID int) error {
	return c.jobCall(ctx, "SubmitJob", jobID)
}

func (c *ExecutorClient) CancelJob(ctx context.Context, jobID int) error {
	return c.jobCall(ctx, "CancelJob", jobID)
}

func (c *ExecutorClient) PauseJob(ctx context.Context, jobID int) error {
	return c.jobCall(ctx, "PauseJob", jobID)
}

func (c *ExecutorClient) ResumeJob(ctx context.Context, jobID int) error {
	return c.jobCall(ctx, "ResumeJob", jobID)
}

func (c *ExecutorClient) SubmitSteps(ctx context.Context, steps []model.StepDescriptor) error {
	if steps == nil {
		steps = []model.StepDescriptor{}
	}
	return c.post(ctx, "SubmitSteps", steps)
}

func (c *ExecutorClient) CancelTasks(ctx context.Context, taskIDs []int) error {
	if taskIDs == nil {
		taskIDs = []int{}
	}
	return c.post(ctx, "CancelTasks", taskIDs)
}

func (c *ExecutorClient) jobCall(ctx context.Context, method string, jobID int) error {
	return c.post(ctx, method, model.JobRef{JobID: &jobID})
}

func (c *ExecutorClient) post(ctx context.Context, method string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", method, err)
	}
	_, err = c.caller.Call(ctx, method, body)
	return err
}
