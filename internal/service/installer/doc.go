// Package installer performs the bootstrap install: it resolves the latest
// published release, downloads and extracts the bundle into the install
// root, verifies the entry point, and registers the command symlink and
// menu entry.
//
// The flow is fail-fast and destructive towards prior installs, which makes
// it idempotent: running it twice converges to the same end state.
package installer
