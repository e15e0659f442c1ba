package main

import (
	"context"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/spf13/cobra"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := repositories.Migrate(ctx, opts.Config.DatabaseURL); err != nil {
				log.Error("Failed to migrate database: %v", err)
				return err
			}
			log.Info("Database is up to date")
			return nil
		},
	}
}
