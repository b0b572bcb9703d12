package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/me/eosched/pkg/model"
)

// ExecutorHandler receives the executor operations.
type ExecutorHandler interface {
	SubmitJob(ctx context.Context, jobID int) error
	CancelJob(ctx context.Context, jobID int) error
	PauseJob(ctx context.Context, jobID int) error
	ResumeJob(ctx context.Context, jobID int) error
	SubmitSteps(ctx context.Context, steps []model.StepDescriptor) error
	CancelTasks(ctx context.Context, taskIDs []int) error
}

// ExecutorActions returns the executor action table over h.
func ExecutorActions(h ExecutorHandler) Actions {
	return Actions{
		"SubmitJob": jobAction(h.SubmitJob),
		"CancelJob": jobAction(h.CancelJob),
		"PauseJob":  jobAction(h.PauseJob),
		"ResumeJob": jobAction(h.ResumeJob),
		"SubmitSteps": func(ctx context.Context, body []byte) ([]byte, error) {
			var steps []model.StepDescriptor
			if err := json.Unmarshal(body, &steps); err != nil {
				return nil, fmt.Errorf("decode steps: %w", err)
			}
			return nil, h.SubmitSteps(ctx, steps)
		},
		"CancelTasks": func(ctx context.Context, body []byte) ([]byte, error) {
			var ids []int
			if err := json.Unmarshal(body, &ids); err != nil {
				return nil, fmt.Errorf("decode task ids: %w", err)
			}
			return nil, h.CancelTasks(ctx, ids)
		},
	}
}

// jobAction decodes {"jobId": N} and calls fn. Without a jobId the action
// does nothing.
func jobAction(fn func(ctx context.Context, jobID int) error) Action {
	return func(ctx context.Context, body []byte) ([]byte, error) {
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		var ref model.JobRef
		if err := json.Unmarshal(body, &ref); err != nil {
			return nil, fmt.Errorf("decode job reference: %w", err)
		}
		if ref.JobID == nil {
			return nil, nil
		}
		return nil, fn(ctx, *ref.JobID)
	}
}

// NewExecutorController creates the controller served under /executor/.
func NewExecutorController(h ExecutorHandler, logger *slog.Logger) Controller {
	return NewController("executor", ExecutorActions(h), logger)
}
