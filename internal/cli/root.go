package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/eosched/internal/config"
	"github.com/me/eosched/internal/logging"
)

var (
	flagConfig    string
	flagDB        string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
)

// defaultConfigPath returns the config file path, checking EOSCHED_CONFIG first.
func defaultConfigPath() string {
	return os.Getenv("EOSCHED_CONFIG")
}

// NewRootCmd creates the root cobra command for the eosched binary.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eosched",
		Short: "eosched schedules recurring processing jobs",
		Long:  "eosched runs the scheduler, orchestrator and executor processes and manages scheduled tasks.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			cfg = loaded

			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flags.Changed("db") {
				cfg.DBPath = flagDB
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Validate(cmd.Name()); err != nil {
				return err
			}
			logger = logging.ForProcess(cmd.Name(), cfg.LogLevel, cfg.LogFormat)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "Path to YAML config file (or EOSCHED_CONFIG env)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides db_path)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSchedulerCmd(),
		newOrchestratorCmd(),
		newExecutorCmd(),
		newTasksCmd(),
		newJobsCmd(),
		newNotifyCmd(),
	)

	return root
}
