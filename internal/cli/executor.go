package cli

import (
	"github.com/spf13/cobra"

	"github.com/me/eosched/internal/adaptor"
	"github.com/me/eosched/internal/client"
	"github.com/me/eosched/internal/dispatch"
	"github.com/me/eosched/internal/executor"
)

func newExecutorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "executor",
		Short: "Serve the executor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			factory := client.NewFactory(cfg, logger)
			orch, err := factory.Orchestrator()
			if err != nil {
				return err
			}
			svc := executor.New(st, logger, executor.WithOrchestrator(orch))
			if _, err := svc.StartPending(ctx); err != nil {
				return err
			}

			return serve(ctx, factory, client.PeerExecutor,
				dispatch.NewExecutorController(svc, logger),
				adaptor.NewExecutorBusObject(svc, logger))
		},
	}
}
