package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/eosched/internal/planner"
	"github.com/me/eosched/pkg/model"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage scheduled tasks",
	}
	cmd.AddCommand(newTasksListCmd(), newTasksAddCmd(), newTasksDeleteCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			tasks, err := st.LoadTasks(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No scheduled tasks found.")
				return nil
			}

			now := time.Now()
			fmt.Fprintf(out, "%-6s  %-24s  %-9s  %-8s  %-4s  %-20s  %s\n", "ID", "NAME", "PROCESSOR", "REPEAT", "PRIO", "NEXT RUN", "LAST RUN")
			fmt.Fprintf(out, "%-6s  %-24s  %-9s  %-8s  %-4s  %-20s  %s\n", "--", "----", "---------", "------", "----", "--------", "--------")
			for _, t := range tasks {
				fmt.Fprintf(out, "%-6d  %-24s  %-9d  %-8s  %-4d  %-20s  %s\n",
					t.TaskID, t.TaskName, t.ProcessorID, t.RepeatType, t.Priority,
					relTime(t.Status.NextScheduledRunTime, now), relTime(t.Status.LastSuccessfulScheduledRun, now))
			}
			return nil
		},
	}
}

// relTime renders t relative to now, or "-" for the zero time.
func relTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func newTasksAddCmd() *cobra.Command {
	var (
		task        model.ScheduledTask
		repeat      string
		firstRun    string
		retryPeriod time.Duration
		params      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled task",
		RunE: func(cmd *cobra.Command, args []string) error {
			task.RepeatType = model.RepeatType(repeat)
			task.RetryPeriod = retryPeriod
			if params != "" {
				task.ProcessorParameters = json.RawMessage(params)
			}

			if firstRun == "" {
				task.FirstRunTime = time.Now().UTC().Truncate(time.Minute)
			} else {
				t, err := time.Parse(time.RFC3339, firstRun)
				if err != nil {
					return fmt.Errorf("invalid --first-run: %w", err)
				}
				task.FirstRunTime = t.UTC()
			}

			// Reject tasks the planner would skip.
			probe := task
			if len(planner.New(logger).ComputeNextRunTime([]*model.ScheduledTask{&probe})) == 0 {
				return fmt.Errorf("task %q is malformed (check --repeat and its rule flags)", task.TaskName)
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.CreateTask(cmd.Context(), &task); err != nil {
				return fmt.Errorf("add task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task added: %d (first run %s)\n", task.TaskID, task.FirstRunTime.Format(time.RFC3339))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&task.TaskID, "id", 0, "Task ID (assigned when 0)")
	f.StringVar(&task.TaskName, "name", "", "Task name")
	f.IntVar(&task.ProcessorID, "processor", 0, "Processor ID")
	f.IntVar(&task.SiteID, "site", 0, "Site ID")
	f.IntVar(&task.SeasonID, "season", 0, "Season ID")
	f.IntVar(&task.Priority, "priority", 0, "Priority (lower runs first)")
	f.StringVar(&repeat, "repeat", string(model.RepeatOnce), "Repeat type: once, cyclic, on_date, cron")
	f.StringVar(&firstRun, "first-run", "", "First run time, RFC3339 (default now)")
	f.IntVar(&task.RepeatAfterDays, "every-days", 0, "Days between runs (cyclic)")
	f.IntVar(&task.RepeatOnMonthDay, "month-day", 0, "Day of month (on_date)")
	f.StringVar(&task.CronSpec, "cron", "", "Five-field cron expression (cron)")
	f.DurationVar(&retryPeriod, "retry-period", 0, "Minimum delay before re-evaluating a rejected run")
	f.StringVar(&params, "params", "", "Processor parameters as a JSON object")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("processor")
	cmd.MarkFlagRequired("site")
	return cmd
}

func newTasksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scheduled task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteTask(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task deleted: %d\n", id)
			return nil
		},
	}
}
