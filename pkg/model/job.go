package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProcessingRequest describes one candidate unit of work for the orchestrator.
type ProcessingRequest struct {
	ProcessorID            int    `json:"processorId"`
	SiteID                 int    `json:"siteId"`
	TTNextScheduledRunTime int64  `json:"ttNextScheduledRunTime"`
	ParametersJSON         string `json:"parametersJson"`
}

// ScheduledRunTime returns the run time carried by the request.
func (r ProcessingRequest) ScheduledRunTime() time.Time {
	return time.Unix(r.TTNextScheduledRunTime, 0).UTC()
}

// Parameters decodes ParametersJSON into a generic map.
func (r ProcessingRequest) Parameters() (map[string]any, error) {
	params := map[string]any{}
	if r.ParametersJSON == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(r.ParametersJSON), &params); err != nil {
		return nil, fmt.Errorf("decode request parameters: %w", err)
	}
	return params, nil
}

// JobDefinition is the orchestrator's answer to a ProcessingRequest.
// The body is opaque except for the embedded SchedulingDecision.
type JobDefinition struct {
	ProcessorID       int    `json:"processorId"`
	SiteID            int    `json:"siteId"`
	JobDefinitionJSON string `json:"jobDefinitionJson"`
}

// SchedulingDecision is the part of a job body the scheduler acts on.
type SchedulingDecision struct {
	IsValid         bool            `json:"isValid"`
	SchedulingFlags SchedulingFlags `json:"schedulingFlags,omitempty"`
}

// Decision extracts the scheduling decision from the job body.
func (d JobDefinition) Decision() (SchedulingDecision, error) {
	var dec SchedulingDecision
	if d.JobDefinitionJSON == "" {
		return dec, fmt.Errorf("empty job definition body")
	}
	if err := json.Unmarshal([]byte(d.JobDefinitionJSON), &dec); err != nil {
		return SchedulingDecision{}, fmt.Errorf("decode scheduling decision: %w", err)
	}
	if dec.IsValid && dec.SchedulingFlags == "" {
		return SchedulingDecision{}, fmt.Errorf("valid job definition without scheduling flags")
	}
	return dec, nil
}

// JobBody is the document the orchestrator stores in JobDefinitionJSON.
type JobBody struct {
	SchedulingDecision
	ProcessorID      int            `json:"processorId"`
	SiteID           int            `json:"siteId"`
	ScheduledRunTime int64          `json:"scheduledRunTime"`
	Parameters       map[string]any `json:"parameters,omitempty"`
}

// StepDescriptor describes one executable step of a job.
type StepDescriptor struct {
	ProcessorID   int      `json:"processorId"`
	TaskID        int      `json:"taskId"`
	StepName      string   `json:"stepName"`
	ProcessorPath string   `json:"processorPath"`
	Arguments     []string `json:"arguments"`
}

// JobRef is the body of the executor job control calls.
// JobID is nil when the field was absent.
type JobRef struct {
	JobID *int `json:"jobId"`
}

// Job is a submitted job as recorded by the orchestrator and executor.
type Job struct {
	ID          int       `json:"id"`
	ProcessorID int       `json:"processor_id"`
	SiteID      int       `json:"site_id"`
	Definition  string    `json:"definition"`
	State       JobState  `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Step is a queued StepDescriptor on the executor side.
type Step struct {
	ID int `json:"id"`
	StepDescriptor
	State     StepState `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
