package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"NewsForwarder/internal/app"
)

// NewRunCommand starts the scheduler, the callback listener and the status API.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := bootstrap(opts, true)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

// NewIngestCommand performs one scrape and publish pass, then exits.
func NewIngestCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run a single ingestion pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := bootstrap(opts, true)
			if err != nil {
				return err
			}
			defer closer.Close()

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()
			return application.RunOnce(cmd.Context())
		},
	}
}

// NewInitDBCommand creates the sqlite schema and exits.
func NewInitDBCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := bootstrap(opts, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := app.InitDB(cmd.Context(), cfg); err != nil {
				return err
			}
			logger.Info("database initialised", "path", cfg.Storage.Path)
			return nil
		},
	}
}
