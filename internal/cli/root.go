package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand creates the root command. Without a subcommand it runs the bot.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "newsforwarder",
		Short:         "Scrape news, rewrite it and publish to Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.ConfigPath != "" {
				return os.Setenv(config.PathEnv, opts.ConfigPath)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging level (debug|info|warn|error)")

	run := NewRunCommand(opts)
	cmd.RunE = run.RunE
	cmd.AddCommand(run)
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewInitDBCommand(opts))

	return cmd
}

// bootstrap loads configuration and builds the logger shared by every command.
// Validation errors are ignored unless strict is set.
func bootstrap(opts *RootOptions, strict bool) (config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil && strict {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, closer, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, logger, closer, nil
}
