package packager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/radlocal/radlocal-deploy/internal/config"
	"github.com/radlocal/radlocal-deploy/internal/logger"
	"github.com/radlocal/radlocal-deploy/internal/manifest"
	"github.com/radlocal/radlocal-deploy/internal/release"
	"github.com/radlocal/radlocal-deploy/internal/version"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// Version is the release version to stamp (defaults to the build version).
	Version string
	// Root is the staging directory holding the release files (defaults to cwd).
	Root string
	// ReleaseNotes is an optional human-readable release summary.
	ReleaseNotes string
}

// errEmptyManifest indicates that none of the configured updatable files were found.
var errEmptyManifest = errors.New("no updatable files found under the staging root")

// packager prepares the release manifest for distribution.
// It is unexported; callers go through Run, which encapsulates setup and validation.
type packager struct {
	cfg  *config.Config
	opts *Options
}

// Run executes the packaging workflow: hash the configured updatable files
// under the staging root and write version.json next to them.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "radlocal-packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	if err = pkg.run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// newPackager loads configuration and applies option defaults.
func newPackager(opts *Options) (*packager, error) {
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

	if opts.Version == "" {
		opts.Version = version.Short()
	}

	if opts.Root == "" {
		opts.Root = "."
	}

	return &packager{cfg: cfg, opts: opts}, nil
}

// run builds and persists the manifest.
func (p *packager) run(ctx context.Context) error {
	tag := "v" + strings.TrimPrefix(p.opts.Version, "v")

	resolver := release.NewResolver(release.WithDownloadBase(p.cfg.ReleasesBase))
	meta := manifest.Metadata{
		Version:      strings.TrimPrefix(p.opts.Version, "v"),
		Tag:          tag,
		ReleaseDate:  time.Now().UTC(),
		ReleaseNotes: p.opts.ReleaseNotes,
		DownloadBase: resolver.DownloadBase(p.cfg.Owner, p.cfg.Repo, tag),
	}

	logger.InfoKV(ctx, "Hashing updatable files", "root", p.opts.Root, "tag", tag)

	m, err := manifest.Build(ctx, p.opts.Root, p.cfg.UpdatableFiles, meta)
	if err != nil {
		return err
	}

	if len(m.Files) == 0 {
		return errEmptyManifest
	}

	manifestPath := filepath.Join(p.opts.Root, manifest.Filename)

	logger.InfoKV(ctx, "Saving release manifest", "path", manifestPath)

	if err = m.Save(manifestPath); err != nil {
		return err
	}

	p.printNextSteps(ctx, m, manifestPath)

	return nil
}

// printNextSteps logs human-readable guidance for publishing the release.
func (p *packager) printNextSteps(ctx context.Context, m *manifest.Manifest, manifestPath string) {
	var builder strings.Builder

	builder.WriteString("Publish the release ")
	builder.WriteString(m.Tag)
	builder.WriteString(" with the following assets:\n")
	builder.WriteString(manifestPath)

	for _, name := range m.SortedFiles() {
		builder.WriteString(",\n")
		builder.WriteString(filepath.Join(p.opts.Root, name))
	}

	builder.WriteString("\n\nAlso attach the full bundle ")
	builder.WriteString(p.cfg.BundleName(m.Tag))
	builder.WriteString(" so fresh installs keep working.")

	logger.Info(ctx, builder.String())
}
