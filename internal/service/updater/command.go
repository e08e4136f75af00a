package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/radlocal/radlocal-deploy/internal/config"
	"github.com/radlocal/radlocal-deploy/internal/fetch"
	"github.com/radlocal/radlocal-deploy/internal/logger"
	"github.com/radlocal/radlocal-deploy/internal/manifest"
	"github.com/radlocal/radlocal-deploy/internal/release"
	"github.com/radlocal/radlocal-deploy/internal/service/guard"
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
}

// runner holds the mutable state and helpers for a single update execution.
// It is intentionally unexported; callers go through Run(ctx, Options).
type runner struct {
	cfg                *config.Config     // Deployment configuration loaded from YAML.
	resolver           *release.Resolver  // Release index client.
	fetcher            *fetch.Fetcher     // Artifact download client.
	remote             *manifest.Manifest // Remote manifest describing the latest release.
	temporaryDirectory string             // Where stale files are downloaded before apply.
}

// Run executes the incremental update and is the public entry point for the CLI.
// It is fail-soft by contract: one file's failure never prevents the others
// from updating, and a failed run never prevents the host application from
// starting. The returned error covers only conditions under which no update
// could even be attempted.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "radlocal-updater")

	u, err := newRunner(opts)
	if err != nil {
		return nil, err
	}

	releaseMarker, err := guard.Acquire(ctx, filepath.Dir(u.cfg.InstallRoot), holderExecutables()...)
	if err != nil {
		return nil, err
	}

	defer releaseMarker()
	defer u.cleanup(ctx)

	report := u.run(ctx)

	report.Log(ctx)

	return report, nil
}

// newRunner loads configuration and prepares the network clients.
func newRunner(opts *Options) (*runner, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	return &runner{
		cfg: cfg,
		resolver: release.NewResolver(
			release.WithIndexBase(cfg.IndexBase),
			release.WithDownloadBase(cfg.ReleasesBase),
			release.WithTimeout(cfg.Timeout),
		),
		fetcher: fetch.NewFetcher(fetch.WithTimeout(cfg.Timeout)),
	}, nil
}

// loadConfig reads settings from the provided path, falling back to the
// settings persisted inside the install root by the installer, and finally
// to built-in defaults.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	if cfg, err := config.Load(config.DefaultConfigFilename); err == nil {
		return cfg, nil
	}

	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}

	if loaded, loadErr := config.Load(cfg.SettingsPath()); loadErr == nil {
		return loaded, nil
	}

	return cfg, nil
}

// run walks the update algorithm, recording failures instead of raising them.
func (u *runner) run(ctx context.Context) *Report {
	report := NewReport()

	logger.Info(ctx, "Resolving the latest published release")

	tag, err := u.resolver.LatestTag(ctx, u.cfg.Owner, u.cfg.Repo)
	if err != nil {
		// No resolvable release means no update available; the application
		// continues with its current state.
		logger.InfoKV(ctx, "No update available", "reason", err)

		report.NoRelease = true

		return report
	}

	report.Tag = tag

	logger.InfoKV(ctx, "Fetching the release manifest", "tag", tag)

	if err = u.fetchRemoteManifest(ctx, tag); err != nil {
		logger.WarnKV(ctx, "Could not fetch release manifest, continuing with current state",
			"tag", tag, "error", err)

		report.NoRelease = true

		return report
	}

	logger.Info(ctx, "Comparing the manifest against installed file hashes")

	diff, err := u.remote.DiffAgainst(ctx, u.cfg.InstallRoot)
	if err != nil {
		report.Fail(manifest.Filename, err)
		return report
	}

	report.Unchanged = diff.Unchanged

	if len(diff.Stale) == 0 {
		logger.Info(ctx, "All files are current")
		return report
	}

	logger.InfoKV(ctx, "Updating stale files", "count", len(diff.Stale))

	u.updateStaleFiles(ctx, diff.Stale, report)

	return report
}

// fetchRemoteManifest downloads and parses the manifest published for the tag.
func (u *runner) fetchRemoteManifest(ctx context.Context, tag string) error {
	manifestURL := u.resolver.ManifestURL(u.cfg.Owner, u.cfg.Repo, tag, manifest.Filename)

	data, err := u.fetcher.FetchBytes(ctx, manifestURL)
	if err != nil {
		return err
	}

	remote, err := manifest.Decode(data)
	if err != nil {
		return err
	}

	if remote.DownloadBase == "" {
		remote.DownloadBase = u.resolver.DownloadBase(u.cfg.Owner, u.cfg.Repo, tag)
	}

	u.remote = remote

	return nil
}

// updateStaleFiles fetches and atomically applies each stale entry.
// Entries are independent: a failure is recorded and the loop continues.
func (u *runner) updateStaleFiles(ctx context.Context, stale []string, report *Report) {
	temporaryDirectory, err := os.MkdirTemp("", "radlocal-updater-")
	if err != nil {
		for _, name := range stale {
			report.Fail(name, err)
		}

		return
	}

	u.temporaryDirectory = temporaryDirectory

	for _, name := range stale {
		if err := ctx.Err(); err != nil {
			report.Fail(name, err)
			continue
		}

		if err := u.updateFile(ctx, name); err != nil {
			logger.WarnKV(ctx, "File update failed, will retry on next run",
				"file", name, "error", err)
			report.Fail(name, err)

			continue
		}

		logger.InfoKV(ctx, "Updated file", "file", name)
		report.Updated = append(report.Updated, name)
	}
}

// updateFile downloads one manifest entry, verifies its checksum and swaps it
// into place. The swap is write-temp-then-rename, so a crash mid-update never
// leaves a half-written file at the installed path.
func (u *runner) updateFile(ctx context.Context, name string) error {
	// Entry names come from the remote manifest; one that escapes the
	// install root is rejected before anything is downloaded or written.
	targetPath, err := manifest.EntryPath(u.cfg.InstallRoot, name)
	if err != nil {
		return err
	}

	fileURL, err := u.remote.FileURL(name)
	if err != nil {
		return err
	}

	checksum, err := manifest.ChecksumBytes(u.remote.Files[name])
	if err != nil {
		return err
	}

	downloadedPath := filepath.Join(u.temporaryDirectory, name)
	if err = u.fetcher.DownloadFile(ctx, fileURL, downloadedPath); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(downloadedPath))
	if err != nil {
		return err
	}

	// Verify the payload before the target path is touched, so a bad
	// download for a file that does not exist yet leaves nothing behind.
	digest := DefaultChecksumFunction.New()
	_, _ = digest.Write(data)

	if !bytes.Equal(digest.Sum(nil), checksum) {
		return fmt.Errorf("%s: %w", name, manifest.ErrChecksumMismatch)
	}

	if err = os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return err
	}

	if _, err = os.Stat(targetPath); err != nil && os.IsNotExist(err) {
		if _, err = os.Create(filepath.Clean(targetPath)); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: targetPath,
		TargetMode: manifest.DefaultFileMode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}

	oldFileName := targetPath + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// cleanup removes the temporary download directory.
func (u *runner) cleanup(ctx context.Context) {
	if u.temporaryDirectory == "" {
		return
	}

	if err := os.RemoveAll(u.temporaryDirectory); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Could not remove temporary directory",
			"path", u.temporaryDirectory, "error", err)
	}
}
