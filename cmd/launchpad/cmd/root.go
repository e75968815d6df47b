package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/launchpad/internal/config"
	"github.com/oshokin/launchpad/internal/logger"
	"github.com/oshokin/launchpad/internal/service/pipeline"
	"github.com/oshokin/launchpad/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// logLevel overrides the configured log level.
	logLevel string
	// dryRun stops before the executable is started.
	dryRun bool

	// errUnknownLogLevel is returned for an unparsable --log-level value.
	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd represents the base command that prepares and runs the release.
	rootCmd = &cobra.Command{
		Use:   "launchpad",
		Short: "Fetch, verify and run the pinned release.",
		Long: `Downloads the pinned release archive, checks its SHA-256 digest, unpacks it,
writes a runtime configuration with the configured endpoints and runs the
executable in the foreground.

Everything is placed in a temporary workspace that is removed when the
executable exits or the launcher is interrupted. The launcher exits with the
exit code of the executable.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := config.Load(cfgPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}

			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			level, ok := logger.ParseLogLevel(cfg.LogLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
			}

			logger.SetLevel(level)

			return pipeline.Run(ctx, cfg, &pipeline.Options{DryRun: dryRun})
		},
	}

	// configCmd groups configuration helpers.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the launcher configuration.",
	}

	// configInitCmd writes the default configuration as a starting point.
	configInitCmd = &cobra.Command{
		Use:   "init <path>",
		Short: "Write a configuration template.",
		Long: `Writes the built-in defaults to a YAML file. The account is left empty and
must be filled in (or provided through LAUNCHPAD_ACCOUNT) before launching.
An existing file is never overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("refusing to overwrite %s: %w", path, os.ErrExist)
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration template written to %s\n", path)

			return nil
		},
	}
)

// Execute runs the launchpad CLI and exits with the status of the launched
// executable, or 1 when the launcher itself failed.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()

	logger.Sync()

	os.Exit(exitStatus(err, os.Stderr))
}

// exitStatus reports launcher failures on stderr and returns the process exit
// status for err. A child exit code is passed through without a message.
func exitStatus(err error, stderr io.Writer) int {
	var coder interface{ ExitCode() int }
	if err != nil && !errors.As(err, &coder) {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	}

	return pipeline.ExitCode(err)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "prepare everything but do not start the executable")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
