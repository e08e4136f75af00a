// Package desktop integrates the installed application with the user's
// environment: the freedesktop menu entry, the per-user bin symlink and
// the PATH visibility check. All of it is cosmetic next to the install
// itself, so callers treat failures here as warnings.
package desktop
