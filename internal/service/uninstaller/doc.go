// Package uninstaller removes the artifacts the installer created.
// Removals are independent and idempotent; interactive confirmation,
// where wanted, belongs to the surrounding CLI.
package uninstaller
