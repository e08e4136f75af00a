// Package archive unpacks release bundles (.tar.gz) into the install root,
// stripping the bundle's single top-level directory and rejecting entries
// that would escape the destination.
package archive
