package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/me/eosched/internal/store"
	"github.com/me/eosched/pkg/model"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

// fakeOrchestrator answers GetJobDefinition from a per-task table and records
// every call.
type fakeOrchestrator struct {
	mu sync.Mutex

	bodies    map[int]string // task id -> job definition body
	getErrs   []error        // consumed one per GetJobDefinition call
	submitErr error
	panicOn   int

	getCalls []int // task ids
	submits  []model.JobDefinition
	notifies int
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{bodies: map[int]string{}}
}

func (f *fakeOrchestrator) decide(taskID int, flags model.SchedulingFlags) {
	f.bodies[taskID] = `{"isValid":true,"schedulingFlags":"` + string(flags) + `"}`
}

func (f *fakeOrchestrator) NotifyEventsAvailable(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifies++
	return nil
}

func (f *fakeOrchestrator) GetJobDefinition(ctx context.Context, req model.ProcessingRequest) (model.JobDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var params RequestParams
	if err := json.Unmarshal([]byte(req.ParametersJSON), &params); err != nil {
		return model.JobDefinition{}, err
	}
	taskID := params.GeneralParams.TaskID
	f.getCalls = append(f.getCalls, taskID)

	if f.panicOn != 0 && f.panicOn == taskID {
		panic("orchestrator exploded")
	}
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return model.JobDefinition{}, err
		}
	}
	return model.JobDefinition{
		ProcessorID:       req.ProcessorID,
		SiteID:            req.SiteID,
		JobDefinitionJSON: f.bodies[taskID],
	}, nil
}

func (f *fakeOrchestrator) SubmitJob(ctx context.Context, def model.JobDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, def)
	return f.submitErr
}

// countingStore wraps a TaskStore and counts calls.
type countingStore struct {
	TaskStore
	loadErr error
	loads   int
	updates int
}

func (s *countingStore) LoadTasks(ctx context.Context) ([]*model.ScheduledTask, error) {
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.TaskStore.LoadTasks(ctx)
}

func (s *countingStore) UpdateTaskStatuses(ctx context.Context, tasks []*model.ScheduledTask) error {
	s.updates++
	return s.TaskStore.UpdateTaskStatuses(ctx, tasks)
}

type fixedGate struct {
	ok  bool
	err error
}

func (g fixedGate) Available(ctx context.Context) (bool, error) { return g.ok, g.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// testSetup returns a loop over an in-memory store with a fixed clock.
func testSetup(t *testing.T, cfg Config) (*Loop, *store.SQLiteStore, *fakeOrchestrator) {
	t.Helper()
	st := testStore(t)
	orch := newFakeOrchestrator()
	l := NewLoop(st, orch, nil, cfg, testLogger())
	l.now = func() time.Time { return testNow }
	return l, st, orch
}

func quickConfig() Config {
	return Config{PollInterval: time.Hour, CallRetries: 2}
}

// addTask creates a cyclic task whose first run is an hour before testNow.
func addTask(t *testing.T, st *store.SQLiteStore, id, priority int) *model.ScheduledTask {
	t.Helper()
	task := &model.ScheduledTask{
		TaskID:              id,
		TaskName:            "task",
		ProcessorID:         1,
		SiteID:              7,
		SeasonID:            2,
		RepeatType:          model.RepeatCyclic,
		RepeatAfterDays:     5,
		Priority:            priority,
		FirstRunTime:        testNow.Add(-time.Hour),
		ProcessorParameters: json.RawMessage(`{"resolution":10}`),
	}
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func getTask(t *testing.T, st *store.SQLiteStore, id int) *model.ScheduledTask {
	t.Helper()
	task, err := st.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask(%d): %v", id, err)
	}
	if task == nil {
		t.Fatalf("task %d not found", id)
	}
	return task
}

func TestTick_FlagSemantics(t *testing.T) {
	runTime := testNow.Add(-time.Hour)

	tests := []struct {
		flags       model.SchedulingFlags
		wantSubmits int
		wantAdvance bool
		wantOutcome Outcome
	}{
		{model.ScheduleNext, 1, true, OutcomeSubmitted},
		{model.RetryLater, 0, false, OutcomeRetryLater},
		{model.NoopAndScheduleNext, 0, true, OutcomeAdvanced},
		{model.ExecAndNoScheduleNext, 1, false, OutcomeExecuted},
	}

	for _, tt := range tests {
		t.Run(string(tt.flags), func(t *testing.T) {
			l, st, orch := testSetup(t, quickConfig())
			addTask(t, st, 1, 1)
			orch.decide(1, tt.flags)

			report, err := l.Tick(context.Background())
			if err != nil {
				t.Fatalf("Tick: %v", err)
			}
			if len(orch.submits) != tt.wantSubmits {
				t.Errorf("submits = %d, want %d", len(orch.submits), tt.wantSubmits)
			}
			if report.Submitted != tt.wantSubmits {
				t.Errorf("report.Submitted = %d, want %d", report.Submitted, tt.wantSubmits)
			}
			if len(report.Outcomes) != 1 || report.Outcomes[0].Outcome != tt.wantOutcome {
				t.Errorf("outcomes = %+v, want one %q", report.Outcomes, tt.wantOutcome)
			}

			got := getTask(t, st, 1).Status
			if !got.NextScheduledRunTime.Equal(runTime) {
				t.Errorf("NextScheduledRunTime = %v, want %v", got.NextScheduledRunTime, runTime)
			}
			if tt.wantAdvance {
				if !got.LastSuccessfulScheduledRun.Equal(runTime) {
					t.Errorf("LastSuccessfulScheduledRun = %v, want %v", got.LastSuccessfulScheduledRun, runTime)
				}
				if !got.LastSuccessfulTimestamp.Equal(runTime) {
					t.Errorf("LastSuccessfulTimestamp = %v, want %v", got.LastSuccessfulTimestamp, runTime)
				}
			} else {
				if !got.LastSuccessfulScheduledRun.IsZero() || !got.LastSuccessfulTimestamp.IsZero() {
					t.Errorf("timestamps advanced: %+v", got)
				}
			}
		})
	}
}

func TestTick_SubmitsOnlyHighestPriority(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	addTask(t, st, 1, 3)
	addTask(t, st, 2, 1)
	addTask(t, st, 3, 2)
	for id := 1; id <= 3; id++ {
		orch.decide(id, model.ScheduleNext)
	}

	report, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Ready != 3 {
		t.Errorf("Ready = %d, want 3", report.Ready)
	}
	if len(orch.getCalls) != 1 || orch.getCalls[0] != 2 {
		t.Errorf("GetJobDefinition calls = %v, want [2]", orch.getCalls)
	}
	if len(orch.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(orch.submits))
	}

	if getTask(t, st, 2).Status.LastSuccessfulScheduledRun.IsZero() {
		t.Error("task 2 was not advanced")
	}
	for _, id := range []int{1, 3} {
		if !getTask(t, st, id).Status.LastSuccessfulScheduledRun.IsZero() {
			t.Errorf("task %d advanced without submission", id)
		}
	}
}

func TestTick_SecondCycleSubmitsNextTask(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	addTask(t, st, 1, 1)
	addTask(t, st, 2, 2)
	orch.decide(1, model.ScheduleNext)
	orch.decide(2, model.ScheduleNext)

	for i := 0; i < 2; i++ {
		if _, err := l.Tick(context.Background()); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	if len(orch.getCalls) != 2 || orch.getCalls[0] != 1 || orch.getCalls[1] != 2 {
		t.Errorf("GetJobDefinition calls = %v, want [1 2]", orch.getCalls)
	}

	// Task 1 now waits for its next cyclic run.
	want := testNow.Add(-time.Hour).AddDate(0, 0, 5)
	if got := getTask(t, st, 1).Status.NextScheduledRunTime; !got.Equal(want) {
		t.Errorf("task 1 NextScheduledRunTime = %v, want %v", got, want)
	}
}

func TestTick_InvalidContinuesToNextTask(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	addTask(t, st, 1, 1)
	addTask(t, st, 2, 2)
	orch.bodies[1] = `{"isValid":false}`
	orch.decide(2, model.ScheduleNext)

	report, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(orch.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(orch.submits))
	}
	if len(report.Outcomes) != 2 || report.Outcomes[0].Outcome != OutcomeInvalid {
		t.Errorf("outcomes = %+v", report.Outcomes)
	}

	task1 := getTask(t, st, 1)
	if !task1.Status.LastRetryTime.Equal(testNow) {
		t.Errorf("task 1 LastRetryTime = %v, want %v", task1.Status.LastRetryTime, testNow)
	}
	if !task1.Status.LastSuccessfulScheduledRun.IsZero() {
		t.Error("invalid task must not advance")
	}
}

func TestTick_UnreadableDecisionIsInvalid(t *testing.T) {
	bodies := map[string]string{
		"empty":         ``,
		"not json":      `not json`,
		"unknown flag":  `{"isValid":true,"schedulingFlags":"LATER_MAYBE"}`,
		"missing flags": `{"isValid":true}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			l, st, orch := testSetup(t, quickConfig())
			addTask(t, st, 1, 1)
			orch.bodies[1] = body

			report, err := l.Tick(context.Background())
			if err != nil {
				t.Fatalf("Tick: %v", err)
			}
			if len(orch.submits) != 0 {
				t.Errorf("submits = %d, want 0", len(orch.submits))
			}
			if report.Outcomes[0].Outcome != OutcomeInvalid {
				t.Errorf("outcome = %q, want invalid", report.Outcomes[0].Outcome)
			}
			if !getTask(t, st, 1).Status.LastRetryTime.Equal(testNow) {
				t.Error("LastRetryTime not set")
			}
		})
	}
}

func TestTick_RetryPeriodHoldsInvalidTask(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	task := addTask(t, st, 1, 1)
	task.RetryPeriod = time.Hour
	if err := st.DeleteTask(context.Background(), 1); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	orch.bodies[1] = `{"isValid":false}`

	if _, err := l.Tick(context.Background()); err != nil {
		t.Fatalf("Tick 1: %v", err)
	}

	// Half an hour later the task is still inside its retry period.
	l.now = func() time.Time { return testNow.Add(30 * time.Minute) }
	report, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if report.Ready != 0 {
		t.Errorf("Ready = %d, want 0 inside retry period", report.Ready)
	}

	l.now = func() time.Time { return testNow.Add(time.Hour) }
	report, err = l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick 3: %v", err)
	}
	if report.Ready != 1 {
		t.Errorf("Ready = %d, want 1 after retry period", report.Ready)
	}
	if len(orch.getCalls) != 2 {
		t.Errorf("GetJobDefinition calls = %d, want 2", len(orch.getCalls))
	}
}

func TestTick_OnceTaskRunsOnce(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	task := &model.ScheduledTask{
		TaskName:     "one-shot",
		ProcessorID:  1,
		SiteID:       7,
		RepeatType:   model.RepeatOnce,
		FirstRunTime: testNow.Add(-time.Minute),
	}
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	orch.decide(task.TaskID, model.ScheduleNext)

	for i := 0; i < 3; i++ {
		if _, err := l.Tick(context.Background()); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	if len(orch.submits) != 1 {
		t.Errorf("submits = %d, want 1", len(orch.submits))
	}
}

func TestTick_FutureTaskNotEvaluated(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	task := addTask(t, st, 1, 1)
	task.FirstRunTime = testNow.Add(time.Second)
	st.DeleteTask(context.Background(), 1)
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	report, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Loaded != 1 || report.Ready != 0 {
		t.Errorf("report = %+v, want 1 loaded, 0 ready", report)
	}
	if len(orch.getCalls) != 0 {
		t.Errorf("GetJobDefinition called %d times", len(orch.getCalls))
	}
	// The next run time is still persisted.
	if got := getTask(t, st, 1).Status.NextScheduledRunTime; !got.Equal(task.FirstRunTime) {
		t.Errorf("NextScheduledRunTime = %v, want %v", got, task.FirstRunTime)
	}
}

func TestTick_RequestCarriesGeneralParams(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	addTask(t, st, 4, 1)
	orch.decide(4, model.ScheduleNext)

	var captured model.ProcessingRequest
	l.orch = &capturingOrchestrator{fakeOrchestrator: orch, req: &captured}

	if _, err := l.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if captured.ProcessorID != 1 || captured.SiteID != 7 {
		t.Errorf("request ids = %d/%d, want 1/7", captured.ProcessorID, captured.SiteID)
	}
	if captured.TTNextScheduledRunTime != testNow.Add(-time.Hour).Unix() {
		t.Errorf("TTNextScheduledRunTime = %d", captured.TTNextScheduledRunTime)
	}
	var params RequestParams
	if err := json.Unmarshal([]byte(captured.ParametersJSON), &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params.GeneralParams.TaskType != TaskTypeScheduled || params.GeneralParams.SeasonID != 2 {
		t.Errorf("general params = %+v", params.GeneralParams)
	}
}

type capturingOrchestrator struct {
	*fakeOrchestrator
	req *model.ProcessingRequest
}

func (c *capturingOrchestrator) GetJobDefinition(ctx context.Context, req model.ProcessingRequest) (model.JobDefinition, error) {
	*c.req = req
	return c.fakeOrchestrator.GetJobDefinition(ctx, req)
}

func TestTick_RetriesTransportErrors(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	addTask(t, st, 1, 1)
	orch.decide(1, model.ScheduleNext)
	orch.getErrs = []error{&model.TransportError{Method: "GetJobDefinition", Status: 503}}

	report, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(orch.getCalls) != 2 {
		t.Errorf("GetJobDefinition calls = %d, want 2", len(orch.getCalls))
	}
	if report.Submitted != 1 {
		t.Errorf("Submitted = %d, want 1", report.Submitted)
	}
}

func TestTick_TransportErrorEndsCycle(t *testing.T) {
	cfg := quickConfig()
	cfg.CallRetries = 1
	l, st, orch := testSetup(t, cfg)
	addTask(t, st, 1, 1)
	addTask(t, st, 2, 2)
	orch.decide(2, model.ScheduleNext)
	down := &model.TransportError{Method: "GetJobDefinition", Err: errors.New("connection refused")}
	orch.getErrs = []error{down, down}

	_, err := l.Tick(context.Background())
	if !model.IsRetryable(err) {
		t.Fatalf("Tick error = %v, want a TransportError", err)
	}
	if len(orch.getCalls) != 2 {
		t.Errorf("GetJobDefinition calls = %v, want two attempts for task 1 only", orch.getCalls)
	}
	if len(orch.submits) != 0 {
		t.Errorf("submits = %d, want 0", len(orch.submits))
	}
	// Next run times were persisted before the failing call.
	if getTask(t, st, 1).Status.NextScheduledRunTime.IsZero() {
		t.Error("NextScheduledRunTime not persisted")
	}
}

func TestTick_NonTransportErrorNotRetried(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	addTask(t, st, 1, 1)
	orch.getErrs = []error{errors.New("boom")}

	if _, err := l.Tick(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(orch.getCalls) != 1 {
		t.Errorf("GetJobDefinition calls = %d, want 1", len(orch.getCalls))
	}
}

func TestTick_FailedSubmitNotRetriedOrAdvanced(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	addTask(t, st, 1, 1)
	addTask(t, st, 2, 2)
	orch.decide(1, model.ScheduleNext)
	orch.decide(2, model.ScheduleNext)
	orch.submitErr = &model.TransportError{Method: "SubmitJob", Status: 500}

	if _, err := l.Tick(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(orch.submits) != 1 {
		t.Errorf("SubmitJob calls = %d, want 1", len(orch.submits))
	}
	if !getTask(t, st, 1).Status.LastSuccessfulScheduledRun.IsZero() {
		t.Error("task advanced despite failed submission")
	}
}

func TestTick_BadParametersSkipsTask(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	task := addTask(t, st, 1, 1)
	task.ProcessorParameters = json.RawMessage(`[1,2]`)
	st.DeleteTask(context.Background(), 1)
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	addTask(t, st, 2, 2)
	orch.decide(2, model.ScheduleNext)

	report, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Outcomes[0].Outcome != OutcomeBadParameters {
		t.Errorf("outcome = %q, want bad_parameters", report.Outcomes[0].Outcome)
	}
	if len(orch.submits) != 1 {
		t.Errorf("submits = %d, want 1", len(orch.submits))
	}
}

func TestTick_LoadErrorAbortsCycle(t *testing.T) {
	cs := &countingStore{TaskStore: testStore(t), loadErr: errors.New("database is locked")}
	orch := newFakeOrchestrator()
	l := NewLoop(cs, orch, nil, quickConfig(), testLogger())

	if _, err := l.Tick(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if cs.updates != 0 {
		t.Errorf("UpdateTaskStatuses called %d times, want 0", cs.updates)
	}
	if len(orch.getCalls) != 0 {
		t.Error("orchestrator was called")
	}
}

func TestTick_EmptyTick(t *testing.T) {
	l, _, _ := testSetup(t, quickConfig())
	report, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick with empty DB: %v", err)
	}
	if report.Loaded != 0 || report.Ready != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunOnce_GateClosedSkipsCycle(t *testing.T) {
	for name, gate := range map[string]fixedGate{
		"unavailable": {ok: false},
		"error":       {err: errors.New("no /proc")},
	} {
		t.Run(name, func(t *testing.T) {
			st := testStore(t)
			addTask(t, st, 1, 1)
			cs := &countingStore{TaskStore: st}
			orch := newFakeOrchestrator()
			orch.decide(1, model.ScheduleNext)
			l := NewLoop(cs, orch, gate, quickConfig(), testLogger())

			report := l.RunOnce(context.Background())
			if !report.Skipped {
				t.Error("report.Skipped = false")
			}
			if cs.loads != 0 || cs.updates != 0 {
				t.Errorf("store touched: loads=%d updates=%d", cs.loads, cs.updates)
			}
			if !getTask(t, st, 1).Status.NextScheduledRunTime.IsZero() {
				t.Error("status was written")
			}
		})
	}
}

func TestRunOnce_GateOpenRunsCycle(t *testing.T) {
	st := testStore(t)
	addTask(t, st, 1, 1)
	orch := newFakeOrchestrator()
	orch.decide(1, model.ScheduleNext)
	l := NewLoop(st, orch, fixedGate{ok: true}, quickConfig(), testLogger())

	report := l.RunOnce(context.Background())
	if report.Skipped || report.Submitted != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	l, st, orch := testSetup(t, quickConfig())
	addTask(t, st, 1, 1)
	orch.panicOn = 1

	l.RunOnce(context.Background())
	if len(orch.getCalls) != 1 {
		t.Errorf("GetJobDefinition calls = %d, want 1", len(orch.getCalls))
	}
}

// TestStart_StopsOnContextCancel verifies that Start returns when its context
// is cancelled.
func TestStart_StopsOnContextCancel(t *testing.T) {
	st := testStore(t)
	sched := NewLoop(st, newFakeOrchestrator(), nil, Config{PollInterval: 10 * time.Millisecond}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- sched.Start(ctx)
	}()

	// Let the scheduler run a few ticks, then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return within 5 seconds after context cancellation")
	}
}

func TestStop_WaitsForLoop(t *testing.T) {
	st := testStore(t)
	sched := NewLoop(st, newFakeOrchestrator(), nil, Config{PollInterval: 10 * time.Millisecond}, testLogger())

	done := make(chan error, 1)
	go func() {
		done <- sched.Start(context.Background())
	}()
	time.Sleep(30 * time.Millisecond)

	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start returned %v, want nil", err)
	}
}

func TestStart_RunsFirstCycleImmediately(t *testing.T) {
	st := testStore(t)
	addTask(t, st, 1, 1)
	orch := newFakeOrchestrator()
	orch.decide(1, model.ScheduleNext)
	sched := NewLoop(st, orch, nil, Config{PollInterval: time.Hour}, testLogger())
	sched.now = func() time.Time { return testNow }

	done := make(chan error, 1)
	go func() {
		done <- sched.Start(context.Background())
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		orch.mu.Lock()
		n := len(orch.submits)
		orch.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no cycle ran before the first poll interval elapsed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start returned %v, want nil", err)
	}
}
