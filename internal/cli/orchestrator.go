package cli

import (
	"github.com/spf13/cobra"

	"github.com/me/eosched/internal/adaptor"
	"github.com/me/eosched/internal/client"
	"github.com/me/eosched/internal/dispatch"
	"github.com/me/eosched/internal/orchestrator"
)

func newOrchestratorCmd() *cobra.Command {
	var noExecutor bool

	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Serve the orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			reg, err := orchestrator.NewRegistryFromConfig(cfg.Orchestrator, logger)
			if err != nil {
				return err
			}
			if reg.Len() == 0 {
				logger.Warn("no processors configured; every request will be answered invalid")
			}

			factory := client.NewFactory(cfg, logger)
			var opts []orchestrator.Option
			if !noExecutor {
				exec, err := factory.Executor()
				if err != nil {
					return err
				}
				opts = append(opts, orchestrator.WithExecutor(exec))
			}
			svc := orchestrator.New(st, reg, logger, opts...)

			return serve(ctx, factory, client.PeerOrchestrator,
				dispatch.NewOrchestratorController(svc, logger),
				adaptor.NewOrchestratorBusObject(svc, logger))
		},
	}

	cmd.Flags().BoolVar(&noExecutor, "no-executor", false, "Record submitted jobs without forwarding them to the executor")
	return cmd
}
