package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/radlocal/radlocal-deploy/internal/service/packager"
	"github.com/radlocal/radlocal-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// stagingRoot is the directory holding the staged release files.
	stagingRoot string

	// releaseNotes is an optional human-readable release summary.
	releaseNotes string

	// rootCmd represents the base command for building the release manifest.
	rootCmd = &cobra.Command{
		Use:   "radlocal-packager [version]",
		Short: "Build the version.json manifest for a release",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ConfigPath:   configPath,
				Root:         stagingRoot,
				ReleaseNotes: releaseNotes,
			}

			if len(args) > 0 {
				options.Version = args[0]
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the radlocal-packager CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&stagingRoot, "root", "r", ".", "staging directory with the release files")
	rootCmd.Flags().StringVarP(&releaseNotes, "notes", "n", "", "release notes to stamp into the manifest")
}
