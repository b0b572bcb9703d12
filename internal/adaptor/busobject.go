package adaptor

import (
	"context"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/me/eosched/internal/dispatch"
)

// busObject runs dispatch actions for the exported methods. Failures are
// logged and returned as a generic D-Bus error.
type busObject struct {
	actions dispatch.Actions
	logger  *slog.Logger
}

func (o *busObject) invoke(name, body string) (string, *dbus.Error) {
	resp, err := o.actions.Invoke(context.Background(), name, []byte(body))
	if err != nil {
		o.logger.Error("bus call failed", "method", name, "error", err)
		return "", dbus.MakeFailedError(err)
	}
	return string(resp), nil
}

// OrchestratorBusObject is the orchestrator's exported D-Bus object.
type OrchestratorBusObject struct {
	obj *busObject
}

// NewOrchestratorBusObject creates the bus object over h.
func NewOrchestratorBusObject(h dispatch.OrchestratorHandler, logger *slog.Logger) *OrchestratorBusObject {
	return &OrchestratorBusObject{obj: &busObject{
		actions: dispatch.OrchestratorActions(h),
		logger:  logger.With("component", "orchestrator-bus"),
	}}
}

func (o *OrchestratorBusObject) NotifyEventsAvailable() *dbus.Error {
	_, err := o.obj.invoke("NotifyEventsAvailable", "")
	return err
}

func (o *OrchestratorBusObject) GetJobDefinition(req string) (string, *dbus.Error) {
	return o.obj.invoke("GetJobDefinition", req)
}

func (o *OrchestratorBusObject) SubmitJob(def string) *dbus.Error {
	_, err := o.obj.invoke("SubmitJob", def)
	return err
}

// ExecutorBusObject is the executor's exported D-Bus object.
type ExecutorBusObject struct {
	obj *busObject
}

// NewExecutorBusObject creates the bus object over h.
func NewExecutorBusObject(h dispatch.ExecutorHandler, logger *slog.Logger) *ExecutorBusObject {
	return &ExecutorBusObject{obj: &busObject{
		actions: dispatch.ExecutorActions(h),
		logger:  logger.With("component", "executor-bus"),
	}}
}

func (o *ExecutorBusObject) SubmitJob(ref string) *dbus.Error {
	_, err := o.obj.invoke("SubmitJob", ref)
	return err
}

func (o *ExecutorBusObject) CancelJob(ref string) *dbus.Error {
	_, err := o.obj.invoke("CancelJob", ref)
	return err
}

func (o *ExecutorBusObject) PauseJob(ref string) *dbus.Error {
	_, err := o.obj.invoke("PauseJob", ref)
	return err
}

func (o *ExecutorBusObject) ResumeJob(ref string) *dbus.Error {
	_, err := o.obj.invoke("ResumeJob", ref)
	return err
}

func (o *ExecutorBusObject) SubmitSteps(steps string) *dbus.Error {
	_, err := o.obj.invoke("SubmitSteps", steps)
	return err
}

func (o *ExecutorBusObject) CancelTasks(ids string) *dbus.Error {
	_, err := o.obj.invoke("CancelTasks", ids)
	return err
}
