package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/autohost-updater/internal/config"
	"github.com/oshokin/autohost-updater/internal/logger"
	"github.com/oshokin/autohost-updater/internal/service/updater"
	"github.com/oshokin/autohost-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel adjusts the logging verbosity.
	logLevel string

	// force disables the major-version-jump guard.
	force bool

	// checkOnly reports pending updates without applying them.
	checkOnly bool

	// rootCmd represents the base command for synchronizing packages.
	rootCmd = &cobra.Command{
		Use:   "autohost-updater [package...]",
		Short: "Synchronize autohost packages with the remote repository",
		Long: "Download and install the packages the configured release channel publishes, " +
			"swapping each package's current name to the new version. " +
			"Package arguments override the configured package list.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &updater.Options{
				ConfigPath: configPath,
				Packages:   args,
				Force:      force,
				CheckOnly:  checkOnly,
			}

			count, err := updater.Run(ctx, options)
			if err != nil {
				return err
			}

			cmd.Println(count)

			return nil
		},
	}
)

// Execute runs the autohost-updater CLI and exits with the failure class's
// stable status code on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(updater.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "update even across major version jumps")
	rootCmd.Flags().BoolVar(&checkOnly, "check-only", false, "report pending updates without installing them")
}
