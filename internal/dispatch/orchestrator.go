package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/me/eosched/pkg/model"
)

// OrchestratorHandler receives the orchestrator operations.
type OrchestratorHandler interface {
	NotifyEventsAvailable(ctx context.Context) error
	GetJobDefinition(ctx context.Context, req model.ProcessingRequest) (model.JobDefinition, error)
	SubmitJob(ctx context.Context, def model.JobDefinition) error
}

// OrchestratorActions returns the orchestrator action table over h.
func OrchestratorActions(h OrchestratorHandler) Actions {
	return Actions{
		"NotifyEventsAvailable": func(ctx context.Context, _ []byte) ([]byte, error) {
			return nil, h.NotifyEventsAvailable(ctx)
		},
		"GetJobDefinition": func(ctx context.Context, body []byte) ([]byte, error) {
			var req model.ProcessingRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, fmt.Errorf("decode processing request: %w", err)
			}
			def, err := h.GetJobDefinition(ctx, req)
			if err != nil {
				return nil, err
			}
			return json.Marshal(def)
		},
		"SubmitJob": func(ctx context.Context, body []byte) ([]byte, error) {
			var def model.JobDefinition
			if err := json.Unmarshal(body, &def); err != nil {
				return nil, fmt.Errorf("decode job definition: %w", err)
			}
			return nil, h.SubmitJob(ctx, def)
		},
	}
}

// NewOrchestratorController creates the controller served under /orchestrator/.
func NewOrchestratorController(h OrchestratorHandler, logger *slog.Logger) Controller {
	return NewController("orchestrator", OrchestratorActions(h), logger)
}
