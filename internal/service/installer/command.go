package installer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/radlocal/radlocal-deploy/internal/archive"
	"github.com/radlocal/radlocal-deploy/internal/config"
	"github.com/radlocal/radlocal-deploy/internal/desktop"
	"github.com/radlocal/radlocal-deploy/internal/fetch"
	"github.com/radlocal/radlocal-deploy/internal/logger"
	"github.com/radlocal/radlocal-deploy/internal/manifest"
	"github.com/radlocal/radlocal-deploy/internal/release"
	"github.com/radlocal/radlocal-deploy/internal/service/guard"
)

var (
	// ErrDeclined is returned when the user answers no at the confirmation prompt.
	ErrDeclined = errors.New("installation declined by user")
	// errEntryPointMissing indicates the bundle did not produce the expected executable.
	errEntryPointMissing = errors.New("entry-point executable missing after extraction")
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// AssumeYes skips the interactive confirmation before the destructive install.
	AssumeYes bool
	// Input is where the confirmation answer is read from (stdin by default).
	Input io.Reader
}

// runner holds the state for a single bootstrap install.
// It is intentionally unexported; callers go through Run(ctx, Options).
type runner struct {
	cfg      *config.Config
	resolver *release.Resolver
	fetcher  *fetch.Fetcher
	opts     *Options
	tag      string // Resolved release tag being installed.
}

// Run executes the bootstrap install and is the public entry point for the CLI.
// The flow is linear and fail-fast: any step failing aborts the remaining
// steps with the proximate cause, except the cosmetic integration steps at
// the end, which only warn.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "radlocal-installer")

	ins, err := newRunner(opts)
	if err != nil {
		return err
	}

	releaseMarker, err := guard.Acquire(ctx, filepath.Dir(ins.cfg.InstallRoot), "radlocal-installer", "radlocal-updater")
	if err != nil {
		return err
	}

	defer releaseMarker()

	if err = ins.run(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installation complete",
		"tag", ins.tag, "install_root", ins.cfg.InstallRoot)

	return nil
}

// newRunner loads configuration and prepares the network clients.
func newRunner(opts *Options) (*runner, error) {
	var (
		cfg *config.Config
		err error
	)

	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.Default()
	}

	if err != nil {
		return nil, err
	}

	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &runner{
		cfg:  cfg,
		opts: opts,
		resolver: release.NewResolver(
			release.WithIndexBase(cfg.IndexBase),
			release.WithDownloadBase(cfg.ReleasesBase),
			release.WithTimeout(cfg.Timeout),
		),
		fetcher: fetch.NewFetcher(fetch.WithTimeout(cfg.Timeout)),
	}, nil
}

// run walks the install state machine.
func (r *runner) run(ctx context.Context) error {
	logger.Info(ctx, "Checking environment prerequisites")

	if err := r.checkEnvironment(); err != nil {
		return fmt.Errorf("environment check: %w", err)
	}

	logger.Info(ctx, "Resolving the latest published release")

	tag, err := r.resolver.LatestTag(ctx, r.cfg.Owner, r.cfg.Repo)
	if err != nil {
		return fmt.Errorf("resolve latest release: %w", err)
	}

	r.tag = tag

	if err = r.confirm(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Removing any prior installation")

	if err = r.removePriorInstall(); err != nil {
		return fmt.Errorf("remove prior installation: %w", err)
	}

	logger.InfoKV(ctx, "Downloading the release bundle", "tag", tag)

	bundlePath, cleanupBundle, err := r.downloadBundle(ctx)
	if err != nil {
		return fmt.Errorf("download bundle: %w", err)
	}

	defer cleanupBundle()

	logger.InfoKV(ctx, "Extracting into the install root", "install_root", r.cfg.InstallRoot)

	if err = r.extractBundle(ctx, bundlePath); err != nil {
		return fmt.Errorf("extract bundle: %w", err)
	}

	logger.Info(ctx, "Verifying the entry-point executable")

	if err = r.verifyEntryPoint(ctx); err != nil {
		// The partially extracted tree is deliberately left in place to aid
		// diagnosis; rerunning the installer replaces it wholesale.
		return err
	}

	logger.Info(ctx, "Registering environment integration")

	r.registerIntegration(ctx)

	if err = config.Save(r.cfg.SettingsPath(), r.cfg); err != nil {
		logger.WarnKV(ctx, "Could not persist settings into the install root", "error", err)
	}

	return nil
}

// checkEnvironment fails fast with an instructive message when the target
// directories cannot possibly be used. The extractor and transport client
// are compiled in, so the preflight is about the filesystem, not tools.
func (r *runner) checkEnvironment() error {
	parent := filepath.Dir(r.cfg.InstallRoot)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("install root parent %s is not writable: %w", parent, err)
	}

	if err := os.MkdirAll(r.cfg.BinDir, 0o755); err != nil {
		return fmt.Errorf("bin directory %s is not writable: %w", r.cfg.BinDir, err)
	}

	return nil
}

// confirm asks the user before the destructive install unless AssumeYes is set.
func (r *runner) confirm(ctx context.Context) error {
	if r.opts.AssumeYes {
		return nil
	}

	fmt.Printf("Install %s %s to %s? Any existing installation there will be replaced. [y/N]: ",
		r.cfg.AppName, r.tag, r.cfg.InstallRoot)

	reader := bufio.NewReader(r.opts.Input)

	answer, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "y" && answer != "yes" {
		logger.Info(ctx, "Installation cancelled")
		return ErrDeclined
	}

	return nil
}

// removePriorInstall deletes a detected previous install root wholesale.
// There is no in-place upgrade: rerunning the installer always converges to
// the published release, at the cost of discarding local modifications.
func (r *runner) removePriorInstall() error {
	if _, err := os.Stat(r.cfg.InstallRoot); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	return os.RemoveAll(r.cfg.InstallRoot)
}

// downloadBundle fetches the release archive into a temporary directory.
func (r *runner) downloadBundle(ctx context.Context) (string, func(), error) {
	temporaryDirectory, err := os.MkdirTemp("", "radlocal-installer-")
	if err != nil {
		return "", nil, err
	}

	cleanup := func() {
		_ = os.RemoveAll(temporaryDirectory)
	}

	bundleName := r.cfg.BundleName(r.tag)
	bundleURL := r.resolver.BundleURL(r.cfg.Owner, r.cfg.Repo, r.tag, bundleName)
	bundlePath := filepath.Join(temporaryDirectory, bundleName)

	if err = r.fetcher.DownloadArchive(ctx, bundleURL, bundlePath); err != nil {
		cleanup()
		return "", nil, err
	}

	return bundlePath, cleanup, nil
}

// extractBundle unpacks the archive, stripping the bundle's top-level directory.
func (r *runner) extractBundle(ctx context.Context, bundlePath string) error {
	if err := os.MkdirAll(r.cfg.InstallRoot, 0o755); err != nil {
		return err
	}

	return archive.ExtractArchive(ctx, bundlePath, r.cfg.InstallRoot, 1)
}

// verifyEntryPoint checks the designated executable exists and is runnable.
func (r *runner) verifyEntryPoint(ctx context.Context) error {
	entryPoint := r.cfg.EntryPoint()

	info, err := os.Stat(entryPoint)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", entryPoint, errEntryPointMissing)
	} else if err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file: %w", entryPoint, errEntryPointMissing)
	}

	if info.Mode().Perm()&0o111 == 0 {
		logger.Debug(ctx, "Marking the entry point executable")

		if err = os.Chmod(entryPoint, manifest.DefaultFileMode); err != nil {
			return fmt.Errorf("set entry-point permissions: %w", err)
		}
	}

	return nil
}

// registerIntegration wires the command symlink, the menu entry and the PATH
// check. The executable is already usable directly, so failures here are
// warnings, never fatal.
func (r *runner) registerIntegration(ctx context.Context) {
	entryPoint := r.cfg.EntryPoint()

	if err := desktop.Symlink(entryPoint, r.cfg.SymlinkPath()); err != nil {
		logger.WarnKV(ctx, "Could not create command symlink",
			"link", r.cfg.SymlinkPath(), "error", err)
	}

	entry := &desktop.Entry{
		Name:        "RadLocal",
		GenericName: "Intel Monitor",
		Comment:     "Local intel monitoring and mapping for capsuleers",
		Exec:        entryPoint,
		Icon:        filepath.Join(r.cfg.InstallRoot, r.cfg.AppName+".png"),
		Terminal:    false,
		Categories:  []string{"Utility", "Network"},
		Keywords:    []string{"intel", "map", "eve"},
	}

	if err := desktop.WriteEntry(r.cfg.DesktopEntryPath(), entry); err != nil {
		logger.WarnKV(ctx, "Could not write menu entry",
			"path", r.cfg.DesktopEntryPath(), "error", err)
	}

	if !desktop.DirOnPath(r.cfg.BinDir) {
		logger.WarnKV(ctx, "Bin directory is not on PATH; invoke the executable by full path or extend PATH",
			"bin_dir", r.cfg.BinDir)
	}
}
