package scheduler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/me/eosched/pkg/model"
)

// TaskTypeScheduled marks requests that originate from the scheduler.
const TaskTypeScheduled = "scheduled"

// GeneralParams are the fixed parameters every scheduled request carries.
type GeneralParams struct {
	TaskID         int              `json:"task_id"`
	TaskName       string           `json:"task_name"`
	TaskType       string           `json:"task_type"`
	TaskRepeatType model.RepeatType `json:"task_repeat_type"`
	SeasonID       int              `json:"season_id"`
}

// RequestParams is the document carried in ProcessingRequest.ParametersJSON.
type RequestParams struct {
	GeneralParams   GeneralParams   `json:"general_params"`
	ProcessorParams json.RawMessage `json:"processor_params"`
}

// BuildProcessingRequest builds the request sent to the orchestrator for the
// task's next scheduled run. The processor parameters must be a JSON object
// (or empty) and are passed through unchanged.
func BuildProcessingRequest(task *model.ScheduledTask) (model.ProcessingRequest, error) {
	procParams := bytes.TrimSpace(task.ProcessorParameters)
	if len(procParams) == 0 || bytes.Equal(procParams, []byte("null")) {
		procParams = []byte("{}")
	}
	if procParams[0] != '{' || !json.Valid(procParams) {
		return model.ProcessingRequest{}, fmt.Errorf("task %d: processor parameters are not a JSON object", task.TaskID)
	}

	data, err := json.Marshal(RequestParams{
		GeneralParams: GeneralParams{
			TaskID:         task.TaskID,
			TaskName:       task.TaskName,
			TaskType:       TaskTypeScheduled,
			TaskRepeatType: task.RepeatType,
			SeasonID:       task.SeasonID,
		},
		ProcessorParams: procParams,
	})
	if err != nil {
		return model.ProcessingRequest{}, fmt.Errorf("task %d: marshal parameters: %w", task.TaskID, err)
	}

	return model.ProcessingRequest{
		ProcessorID:            task.ProcessorID,
		SiteID:                 task.SiteID,
		TTNextScheduledRunTime: task.Status.NextScheduledRunTime.Unix(),
		ParametersJSON:         string(data),
	}, nil
}
