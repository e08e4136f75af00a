package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/radlocal/radlocal-deploy/internal/logger"
	"github.com/radlocal/radlocal-deploy/internal/service/updater"
	"github.com/radlocal/radlocal-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for the start-time incremental update.
	rootCmd = &cobra.Command{
		Use:   "radlocal-updater",
		Short: "Fetch and apply changed files from the latest release",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				ConfigPath: configPath,
			}

			report, err := updater.Run(ctx, options)
			if err != nil {
				// Update failure is non-fatal to running the application:
				// log it and let startup continue on the current files.
				logger.ErrorKV(ctx, "Updater could not run", "error", err)
				return nil
			}

			if report.Changed() {
				logger.Info(ctx, "Files were updated, restart the application to load them")
			}

			return nil
		},
	}
)

// Execute runs the radlocal-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
}
