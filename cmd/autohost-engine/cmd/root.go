package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/autohost-updater/internal/config"
	"github.com/oshokin/autohost-updater/internal/logger"
	"github.com/oshokin/autohost-updater/internal/service/engine"
	"github.com/oshokin/autohost-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel adjusts the logging verbosity.
	logLevel string

	// rootCmd represents the base command for installing engine versions.
	rootCmd = &cobra.Command{
		Use:   "autohost-engine [version|branch]",
		Short: "Install a Spring engine version from the buildbot",
		Long: "Download and unpack the named engine version for the local architecture. " +
			"A branch name or channel alias (stable, testing, unstable) installs the " +
			"newest version that branch publishes.",
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &engine.Options{
				ConfigPath: configPath,
				Version:    args[0],
			}

			return engine.Run(ctx, options)
		},
	}
)

// Execute runs the autohost-engine CLI and exits with the failure class's
// stable status code on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(engine.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error)")
}
