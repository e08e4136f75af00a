// Package updater performs the start-time incremental update.
//
// It resolves the newest published release, fetches its manifest, diffs the
// manifest against live local file hashes, and downloads only the stale
// entries, verifying each against its checksum before an atomic swap.
// Entries are isolated from each other's failures and the run never blocks
// the host application from starting.
package updater
