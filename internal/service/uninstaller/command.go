package uninstaller

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/radlocal/radlocal-deploy/internal/config"
	"github.com/radlocal/radlocal-deploy/internal/desktop"
	"github.com/radlocal/radlocal-deploy/internal/logger"
)

// Options are inputs accepted by the uninstaller entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
}

// Run removes every artifact the installer created: the install root, the
// command symlink and the menu-entry file, in that order. Each removal is
// independent and an already absent target counts as success, so the
// uninstall is idempotent. Failures are aggregated rather than aborting the
// remaining removals.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "radlocal-uninstaller")

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	var combined error

	logger.InfoKV(ctx, "Removing the install root", "path", cfg.InstallRoot)

	if err = removeTree(cfg.InstallRoot); err != nil {
		logger.WarnKV(ctx, "Could not remove install root", "error", err)
		combined = multierr.Append(combined, err)
	}

	logger.InfoKV(ctx, "Removing the command symlink", "path", cfg.SymlinkPath())

	if err = desktop.Remove(cfg.SymlinkPath()); err != nil {
		logger.WarnKV(ctx, "Could not remove command symlink", "error", err)
		combined = multierr.Append(combined, err)
	}

	logger.InfoKV(ctx, "Removing the menu entry", "path", cfg.DesktopEntryPath())

	if err = desktop.Remove(cfg.DesktopEntryPath()); err != nil {
		logger.WarnKV(ctx, "Could not remove menu entry", "error", err)
		combined = multierr.Append(combined, err)
	}

	if combined == nil {
		logger.Info(ctx, "Uninstall complete")
	}

	return combined
}

// loadConfig reads settings from the provided path or falls back to defaults.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}

	// Prefer the settings the installer persisted, when still present.
	if loaded, loadErr := config.Load(cfg.SettingsPath()); loadErr == nil {
		return loaded, nil
	}

	return cfg, nil
}

// removeTree deletes a directory tree, treating an absent tree as success.
func removeTree(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}
