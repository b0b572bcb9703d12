package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/me/eosched/pkg/model"
)

// Orchestrator is what the scheduler needs from the orchestrator.
type Orchestrator interface {
	NotifyEventsAvailable(ctx context.Context) error
	GetJobDefinition(ctx context.Context, req model.ProcessingRequest) (model.JobDefinition, error)
	SubmitJob(ctx context.Context, def model.JobDefinition) error
}

// OrchestratorClient implements Orchestrator over a Caller.
type OrchestratorClient struct {
	caller Caller
}

// NewOrchestratorClient wraps caller.
func NewOrchestratorClient(caller Caller) *OrchestratorClient {
	return &OrchestratorClient{caller: caller}
}

func (c *OrchestratorClient) NotifyEventsAvailable(ctx context.Context) error {
	_, err := c.caller.Call(ctx, "NotifyEventsAvailable", nil)
	return err
}

func (c *OrchestratorClient) GetJobDefinition(ctx context.Context, req model.ProcessingRequest) (model.JobDefinition, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.JobDefinition{}, fmt.Errorf("encode processing request: %w", err)
	}
	resp, err := c.caller.Call(ctx, "GetJobDefinition", body)
	if err != nil {
		return model.JobDefinition{}, err
	}
	var def model.JobDefinition
	if err := json.Unmarshal(resp, &def); err != nil {
		return model.JobDefinition{}, fmt.Errorf("decode job definition: %w", err)
	}
	return def, nil
}

func (c *OrchestratorClient) SubmitJob(ctx context.Context, def model.JobDefinition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode job definition: %w", err)
	}
	_, err = c.caller.Call(ctx, "SubmitJob", body)
	return err
}
