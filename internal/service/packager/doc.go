// Package packager prepares the release manifest consumed by the updater.
//
// It hashes the configured updatable files under a staging root, stamps the
// release metadata, and persists version.json for upload alongside the
// release assets. A configured file absent at build time is skipped with a
// warning, so the manifest may be a strict subset of the configured list.
package packager
