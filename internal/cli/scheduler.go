package cli

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/me/eosched/internal/client"
	"github.com/me/eosched/internal/scheduler"
)

func newSchedulerCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the scheduling loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			orch, err := client.NewFactory(cfg, logger).Orchestrator()
			if err != nil {
				return err
			}

			gate := scheduler.NewResourceGate(cfg.Scheduler, logger)
			loop := scheduler.NewLoop(st, orch, gate, scheduler.ConfigFrom(cfg.Scheduler), logger)

			if once {
				report := loop.RunOnce(ctx)
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			if err := loop.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single cycle, print its report and exit")
	return cmd
}
