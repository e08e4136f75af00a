package updater

import (
	"context"
	"crypto"
	"sort"

	"go.uber.org/multierr"

	"github.com/radlocal/radlocal-deploy/internal/logger"

	// Ensure SHA-256 is available for checksum verification.
	_ "crypto/sha256"
)

// DefaultChecksumFunction verifies downloaded files against manifest tokens.
const DefaultChecksumFunction crypto.Hash = crypto.SHA256

// defaultMapCapacity is the default initial capacity for maps and slices.
const defaultMapCapacity = 16

// holderExecutables lists the binaries that may legitimately hold the run marker.
func holderExecutables() []string {
	return []string{
		"radlocal-updater",
		"radlocal-installer",
	}
}

// Report aggregates the outcome of one updater run. Failures are collected
// here rather than raised, because the primary contract is that the host
// application still starts, possibly on a slightly stale file.
type Report struct {
	// Tag is the release tag the run was updating towards.
	Tag string
	// NoRelease reports that no update was available (or resolvable).
	NoRelease bool
	// Updated lists entries that were fetched and swapped into place.
	Updated []string
	// Unchanged lists entries whose local hash already matched the manifest.
	Unchanged []string
	// Failed maps entries to the error that stopped their update.
	Failed map[string]error
}

// NewReport produces an empty report.
func NewReport() *Report {
	return &Report{
		Updated:   make([]string, 0, defaultMapCapacity),
		Unchanged: make([]string, 0, defaultMapCapacity),
		Failed:    make(map[string]error, defaultMapCapacity),
	}
}

// Fail records a per-file failure.
func (r *Report) Fail(name string, err error) {
	r.Failed[name] = err
}

// Changed reports whether any file was replaced, meaning the host application
// should reload to pick up the new content.
func (r *Report) Changed() bool {
	return len(r.Updated) > 0
}

// Err combines all per-file failures into one error, or nil for a clean run.
func (r *Report) Err() error {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}

	sort.Strings(names)

	var combined error
	for _, name := range names {
		combined = multierr.Append(combined, r.Failed[name])
	}

	return combined
}

// Log writes a human-readable run summary.
func (r *Report) Log(ctx context.Context) {
	switch {
	case r.NoRelease:
		logger.Info(ctx, "No update applied, application continues with current files")
	case len(r.Failed) > 0:
		logger.WarnKV(ctx, "Update finished with failures",
			"tag", r.Tag,
			"updated", len(r.Updated),
			"unchanged", len(r.Unchanged),
			"failed", len(r.Failed),
			"errors", r.Err())
	case r.Changed():
		logger.InfoKV(ctx, "Update complete",
			"tag", r.Tag,
			"updated", len(r.Updated),
			"unchanged", len(r.Unchanged))
	default:
		logger.InfoKV(ctx, "Already up to date", "tag", r.Tag)
	}
}
