// Package version exposes build metadata injected at compile time via ldflags
// and a reusable cobra `version` subcommand shared by all binaries.
package version
