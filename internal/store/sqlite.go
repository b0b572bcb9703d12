package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/eosched/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	// The scheduler and orchestrator processes may share one database file.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Scheduled tasks ---

const taskColumns = `t.task_id, t.task_name, t.processor_id, t.site_id, t.season_id, t.repeat_type, t.priority,
	t.first_run_time, t.repeat_after_days, t.repeat_on_month_day, t.cron_spec, t.retry_period_seconds, t.processor_params,
	COALESCE(st.next_scheduled_run_time, ''), COALESCE(st.last_successful_timestamp, ''),
	COALESCE(st.last_successful_scheduled_run, ''), COALESCE(st.last_retry_time, '')`

const taskFrom = ` FROM scheduled_tasks t LEFT JOIN scheduled_task_status st ON st.task_id = t.task_id`

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.ScheduledTask) error {
	s.logger.Debug("sql", "op", "insert", "table", "scheduled_tasks", "task_id", task.TaskID)

	params := string(task.ProcessorParameters)
	if params == "" {
		params = "{}"
	}
	if !json.Valid([]byte(params)) {
		return fmt.Errorf("processor parameters of task %d are not valid JSON", task.TaskID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO scheduled_tasks (task_id, task_name, processor_id, site_id, season_id, repeat_type, priority,
		   first_run_time, repeat_after_days, repeat_on_month_day, cron_spec, retry_period_seconds, processor_params)
		 VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskID, task.TaskName, task.ProcessorID, task.SiteID, task.SeasonID, string(task.RepeatType), task.Priority,
		formatTime(task.FirstRunTime), task.RepeatAfterDays, task.RepeatOnMonthDay, task.CronSpec,
		int64(task.RetryPeriod/time.Second), params,
	)
	if err != nil {
		return err
	}
	if task.TaskID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		task.TaskID = int(id)
	}
	if err := upsertStatus(ctx, tx, task); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetTask(ctx context.Context, id int) (*model.ScheduledTask, error) {
	s.logger.Debug("sql", "op", "select", "table", "scheduled_tasks", "task_id", id)

	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+taskFrom+` WHERE t.task_id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// LoadTasks returns every scheduled task with its status.
func (s *SQLiteStore) LoadTasks(ctx context.Context) ([]*model.ScheduledTask, error) {
	s.logger.Debug("sql", "op", "list", "table", "scheduled_tasks")

	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+taskFrom+` ORDER BY t.task_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatuses writes the status of every task in a single transaction.
func (s *SQLiteStore) UpdateTaskStatuses(ctx context.Context, tasks []*model.ScheduledTask) error {
	s.logger.Debug("sql", "op", "upsert", "table", "scheduled_task_status", "count", len(tasks))
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, task := range tasks {
		if err := upsertStatus(ctx, tx, task); err != nil {
			return fmt.Errorf("update status of task %d: %w", task.TaskID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id int) error {
	s.logger.Debug("sql", "op", "delete", "table", "scheduled_tasks", "task_id", id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE task_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d not found", id)
	}
	return nil
}

func upsertStatus(ctx context.Context, tx *sql.Tx, task *model.ScheduledTask) error {
	st := task.Status
	_, err := tx.ExecContext(ctx,
		`INSERT INTO scheduled_task_status (task_id, next_scheduled_run_time, last_successful_timestamp,
		   last_successful_scheduled_run, last_retry_time)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
		   next_scheduled_run_time = excluded.next_scheduled_run_time,
		   last_successful_timestamp = excluded.last_successful_timestamp,
		   last_successful_scheduled_run = excluded.last_successful_scheduled_run,
		   last_retry_time = excluded.last_retry_time`,
		task.TaskID, formatTime(st.NextScheduledRunTime), formatTime(st.LastSuccessfulTimestamp),
		formatTime(st.LastSuccessfulScheduledRun), formatTime(st.LastRetryTime),
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*model.ScheduledTask, error) {
	var task model.ScheduledTask
	var repeatType, firstRun, params string
	var retrySeconds int64
	var next, lastTS, lastRun, lastRetry string

	if err := row.Scan(
		&task.TaskID, &task.TaskName, &task.ProcessorID, &task.SiteID, &task.SeasonID, &repeatType, &task.Priority,
		&firstRun, &task.RepeatAfterDays, &task.RepeatOnMonthDay, &task.CronSpec, &retrySeconds, &params,
		&next, &lastTS, &lastRun, &lastRetry,
	); err != nil {
		return nil, err
	}

	task.RepeatType = model.RepeatType(repeatType)
	task.RetryPeriod = time.Duration(retrySeconds) * time.Second
	task.ProcessorParameters = json.RawMessage(params)
	var tp timeParser
	task.FirstRunTime = tp.parse("first_run_time", firstRun)
	task.Status = model.TaskStatus{
		NextScheduledRunTime:       tp.parse("next_scheduled_run_time", next),
		LastSuccessfulTimestamp:    tp.parse("last_successful_timestamp", lastTS),
		LastSuccessfulScheduledRun: tp.parse("last_successful_scheduled_run", lastRun),
		LastRetryTime:              tp.parse("last_retry_time", lastRetry),
	}
	if tp.err != nil {
		return nil, fmt.Errorf("task %d: %w", task.TaskID, tp.err)
	}
	return &task, nil
}

// --- Jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.Job) error {
	s.logger.Debug("sql", "op", "insert", "table", "jobs", "processor_id", job.ProcessorID, "site_id", job.SiteID)

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.State == "" {
		job.State = model.JobStateSubmitted
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (processor_id, site_id, definition, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		job.ProcessorID, job.SiteID, job.Definition, string(job.State),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	job.ID = int(id)
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id int) (*model.Job, error) {
	s.logger.Debug("sql", "op", "select", "table", "jobs", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, processor_id, site_id, definition, state, created_at, updated_at FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func (s *SQLiteStore) UpdateJobState(ctx context.Context, id int, state model.JobState) error {
	s.logger.Debug("sql", "op", "update", "table", "jobs", "id", id, "state", state)

	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), formatTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %d not found", id)
	}
	return nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context) ([]*model.Job, error) {
	s.logger.Debug("sql", "op", "list", "table", "jobs")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, processor_id, site_id, definition, state, created_at, updated_at FROM jobs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row scanner) (*model.Job, error) {
	var job model.Job
	var state, createdAt, updatedAt string
	if err := row.Scan(&job.ID, &job.ProcessorID, &job.SiteID, &job.Definition, &state, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.State = model.JobState(state)
	var tp timeParser
	job.CreatedAt = tp.parse("created_at", createdAt)
	job.UpdatedAt = tp.parse("updated_at", updatedAt)
	if tp.err != nil {
		return nil, fmt.Errorf("job %d: %w", job.ID, tp.err)
	}
	return &job, nil
}

// --- Steps ---

// CreateSteps queues steps in one transaction and returns them with their IDs.
func (s *SQLiteStore) CreateSteps(ctx context.Context, descs []model.StepDescriptor) ([]*model.Step, error) {
	s.logger.Debug("sql", "op", "insert", "table", "steps", "count", len(descs))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	steps := make([]*model.Step, 0, len(descs))
	for _, d := range descs {
		args := d.Arguments
		if args == nil {
			args = []string{}
		}
		argsJSON, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO steps (processor_id, task_id, step_name, processor_path, arguments, state, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ProcessorID, d.TaskID, d.StepName, d.ProcessorPath, string(argsJSON),
			string(model.StepStateQueued), formatTime(now),
		)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		steps = append(steps, &model.Step{ID: int(id), StepDescriptor: d, State: model.StepStateQueued, CreatedAt: now})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return steps, nil
}

// CancelStepsByTask cancels the queued steps of the given tasks.
func (s *SQLiteStore) CancelStepsByTask(ctx context.Context, taskIDs []int) (int64, error) {
	s.logger.Debug("sql", "op", "update", "table", "steps", "task_ids", taskIDs)
	if len(taskIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(taskIDs)), ",")
	args := []any{string(model.StepStateCancelled), string(model.StepStateQueued)}
	for _, id := range taskIDs {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE steps SET state = ? WHERE state = ? AND task_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) ListSteps(ctx context.Context) ([]*model.Step, error) {
	s.logger.Debug("sql", "op", "list", "table", "steps")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, processor_id, task_id, step_name, processor_path, arguments, state, created_at FROM steps ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*model.Step
	for rows.Next() {
		var st model.Step
		var argsJSON, state, createdAt string
		if err := rows.Scan(&st.ID, &st.ProcessorID, &st.TaskID, &st.StepName, &st.ProcessorPath,
			&argsJSON, &state, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(argsJSON), &st.Arguments); err != nil {
			return nil, fmt.Errorf("step %d: decode arguments: %w", st.ID, err)
		}
		st.State = model.StepState(state)
		var tp timeParser
		st.CreatedAt = tp.parse("created_at", createdAt)
		if tp.err != nil {
			return nil, fmt.Errorf("step %d: %w", st.ID, tp.err)
		}
		steps = append(steps, &st)
	}
	return steps, rows.Err()
}

// formatTime stores zero times as the empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timeParser parses stored timestamps and keeps the first error.
// The empty string is the zero time.
type timeParser struct {
	err error
}

func (p *timeParser) parse(column, s string) time.Time {
	if s == "" || p.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		p.err = fmt.Errorf("parse %s %q: %w", column, s, err)
		return time.Time{}
	}
	return t
}
