package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/eosched/internal/client"
)

func newNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Tell the orchestrator that new events are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := client.NewFactory(cfg, logger).Orchestrator()
			if err != nil {
				return err
			}
			if err := orch.NotifyEventsAvailable(cmd.Context()); err != nil {
				return fmt.Errorf("notify: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Orchestrator notified.")
			return nil
		},
	}
}
