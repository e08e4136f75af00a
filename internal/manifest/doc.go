// Package manifest implements the content-addressed release manifest:
// building it from a staged file tree, encoding it as version.json,
// and diffing it against the live local install state.
//
// Checksum tokens have the form "sha256:<lowercase hex>" so the manifest
// stays self-describing about the hash algorithm in use.
package manifest
