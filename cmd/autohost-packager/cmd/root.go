package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/autohost-updater/internal/config"
	"github.com/oshokin/autohost-updater/internal/logger"
	"github.com/oshokin/autohost-updater/internal/service/packager"
	"github.com/oshokin/autohost-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel adjusts the logging verbosity.
	logLevel string

	// rootCmd represents the base command for publishing release channels.
	rootCmd = &cobra.Command{
		Use:   "autohost-packager [channel] [dir]",
		Short: "Build the release-channel manifest from a directory of artifacts",
		Long: "Scan a directory of versioned build outputs, zip directory artifacts, " +
			"rewrite the channel section of packages.txt and list the files to upload. " +
			"The directory defaults to the working directory.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &packager.Options{
				ConfigPath: configPath,
				Channel:    args[0],
			}
			if len(args) > 1 {
				options.Dir = args[1]
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the autohost-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error)")
}
