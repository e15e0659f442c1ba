package main

import (
	"fmt"
	"os"

	"github.com/cbodonnell/cardroom/pkg/config"
	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel    string
	DatabaseURL string

	// Config is loaded from the environment before any command runs,
	// with flags taking precedence.
	Config config.Config
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "cardroom",
		Short:         "Card game room server",
		Long:          "Hosts card game lobbies over WebSocket and keeps live room state reconciled with the database.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.LogLevel
			}
			if cmd.Flags().Changed("database-url") {
				cfg.DatabaseURL = opts.DatabaseURL
			}

			parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to parse log level: %v\n", err)
				return err
			}
			logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
			log.SetDefaultLogger(logger)
			log.Debug("Log level set to %s", parsedLogLevel)

			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (error|warn|info|debug|trace), overrides CARDROOM_LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "sqlite:// or postgres:// url, overrides CARDROOM_DATABASE_URL")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}
