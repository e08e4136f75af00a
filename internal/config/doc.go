// Package config loads, validates and persists the YAML deployment settings
// shared by the installer, updater, uninstaller and packager binaries.
//
// A single explicit Config struct replaces scattered global constants so the
// same logic can target different projects and directory layouts in tests.
package config
