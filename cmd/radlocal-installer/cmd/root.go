package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/radlocal/radlocal-deploy/internal/service/installer"
	"github.com/radlocal/radlocal-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// assumeYes skips the interactive confirmation.
	assumeYes bool

	// rootCmd represents the base command for the bootstrap install.
	rootCmd = &cobra.Command{
		Use:   "radlocal-installer",
		Short: "Install the latest published RadLocal release",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &installer.Options{
				ConfigPath: configPath,
				AssumeYes:  assumeYes,
			}

			err := installer.Run(ctx, options)
			if errors.Is(err, installer.ErrDeclined) {
				// A declined prompt is a clean exit, not a failure.
				return nil
			}

			return err
		},
	}
)

// Execute runs the radlocal-installer CLI and exits with non-zero status on error.
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
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
}
