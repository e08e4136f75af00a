package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/radlocal/radlocal-deploy/internal/service/uninstaller"
	"github.com/radlocal/radlocal-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// assumeYes skips the interactive confirmation.
	assumeYes bool

	// rootCmd represents the base command for removing the installation.
	rootCmd = &cobra.Command{
		Use:   "radlocal-uninstaller",
		Short: "Remove the RadLocal installation and its integration artifacts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if !assumeYes && !confirm() {
				return nil
			}

			options := &uninstaller.Options{
				ConfigPath: configPath,
			}

			return uninstaller.Run(ctx, options)
		},
	}
)

// confirm asks the user before removing the installation.
func confirm() bool {
	fmt.Print("Remove the RadLocal installation and its menu entry? [y/N]: ")

	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))

	return answer == "y" || answer == "yes"
}

// Execute runs the radlocal-uninstaller CLI and exits with non-zero status on error.
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
