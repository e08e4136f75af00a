package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/radlocal/radlocal-deploy/internal/config"
	"github.com/radlocal/radlocal-deploy/internal/release"
	"github.com/radlocal/radlocal-deploy/internal/service/installer"
)

// TestInstaller_FullFlow installs the latest release end to end: resolve the
// tag, download and extract the bundle, register the command symlink and menu
// entry, and persist settings inside the install root.
func TestInstaller_FullFlow(t *testing.T) {
	t.Parallel()

	const tag = "v3.0.0"

	binary := []byte("#!/bin/sh\necho radlocal\n")
	cache := []byte(`{"systems": []}`)

	host := newReleaseHost(t, tag, nil)

	dir := t.TempDir()
	cfg, cfgPath := testConfig(t, host, dir)

	bundleName := cfg.BundleName(tag)
	topLevel := strings.TrimSuffix(bundleName, ".tar.gz")
	host.setAsset(bundleName, buildBundle(t, topLevel, map[string][]byte{
		"radlocal":           binary,
		"systems_cache.json": cache,
	}))

	err := installer.Run(context.Background(), &installer.Options{
		ConfigPath: cfgPath,
		AssumeYes:  true,
	})
	require.NoError(t, err)

	// Entry point extracted and executable.
	info, statErr := os.Stat(cfg.EntryPoint())
	require.NoError(t, statErr)
	require.True(t, info.Mode().IsRegular())
	require.NotZero(t, info.Mode().Perm()&0o100)

	got, readErr := os.ReadFile(filepath.Join(cfg.InstallRoot, "systems_cache.json"))
	require.NoError(t, readErr)
	require.Equal(t, cache, got)

	// Command symlink points at the entry point.
	target, linkErr := os.Readlink(cfg.SymlinkPath())
	require.NoError(t, linkErr)
	require.Equal(t, cfg.EntryPoint(), target)

	// Menu entry references the entry point.
	entry, entryErr := os.ReadFile(cfg.DesktopEntryPath())
	require.NoError(t, entryErr)
	require.Contains(t, string(entry), "Exec="+cfg.EntryPoint())

	// Settings persisted next to the installed tree.
	saved, loadErr := config.Load(cfg.SettingsPath())
	require.NoError(t, loadErr)
	require.Equal(t, cfg.InstallRoot, saved.InstallRoot)
}

// TestInstaller_Reinstall runs the installer twice and verifies the second
// pass replaces the first install wholesale, including locally added files.
func TestInstaller_Reinstall(t *testing.T) {
	t.Parallel()

	const tag = "v3.1.0"

	host := newReleaseHost(t, tag, nil)

	dir := t.TempDir()
	cfg, cfgPath := testConfig(t, host, dir)

	bundleName := cfg.BundleName(tag)
	topLevel := strings.TrimSuffix(bundleName, ".tar.gz")
	host.setAsset(bundleName, buildBundle(t, topLevel, map[string][]byte{
		"radlocal": []byte("binary v1"),
	}))

	opts := &installer.Options{ConfigPath: cfgPath, AssumeYes: true}
	require.NoError(t, installer.Run(context.Background(), opts))

	// A file the bundle does not ship must not survive a reinstall.
	stray := filepath.Join(cfg.InstallRoot, "stray.log")
	require.NoError(t, os.WriteFile(stray, []byte("leftover"), 0o644))

	host.setAsset(bundleName, buildBundle(t, topLevel, map[string][]byte{
		"radlocal": []byte("binary v2"),
	}))
	require.NoError(t, installer.Run(context.Background(), opts))

	got, readErr := os.ReadFile(cfg.EntryPoint())
	require.NoError(t, readErr)
	require.Equal(t, []byte("binary v2"), got)

	_, statErr := os.Stat(stray)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestInstaller_Declined aborts before touching the filesystem when the user
// answers no at the confirmation prompt.
func TestInstaller_Declined(t *testing.T) {
	t.Parallel()

	host := newReleaseHost(t, "v3.2.0", nil)

	dir := t.TempDir()
	cfg, cfgPath := testConfig(t, host, dir)

	err := installer.Run(context.Background(), &installer.Options{
		ConfigPath: cfgPath,
		Input:      strings.NewReader("n\n"),
	})
	require.ErrorIs(t, err, installer.ErrDeclined)

	_, statErr := os.Stat(cfg.InstallRoot)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestInstaller_NoRelease surfaces a resolution failure instead of
// proceeding with an empty tag.
func TestInstaller_NoRelease(t *testing.T) {
	t.Parallel()

	host := newReleaseHost(t, "", nil)

	dir := t.TempDir()
	_, cfgPath := testConfig(t, host, dir)

	err := installer.Run(context.Background(), &installer.Options{
		ConfigPath: cfgPath,
		AssumeYes:  true,
	})
	require.ErrorIs(t, err, release.ErrNoRelease)
}

// TestInstaller_MissingEntryPoint fails when the extracted bundle does not
// contain the application binary, leaving the partial tree for inspection.
func TestInstaller_MissingEntryPoint(t *testing.T) {
	t.Parallel()

	const tag = "v3.3.0"

	host := newReleaseHost(t, tag, nil)

	dir := t.TempDir()
	cfg, cfgPath := testConfig(t, host, dir)

	bundleName := cfg.BundleName(tag)
	topLevel := strings.TrimSuffix(bundleName, ".tar.gz")
	host.setAsset(bundleName, buildBundle(t, topLevel, map[string][]byte{
		"systems_cache.json": []byte("{}"),
	}))

	err := installer.Run(context.Background(), &installer.Options{
		ConfigPath: cfgPath,
		AssumeYes:  true,
	})
	require.Error(t, err)

	// The extracted tree stays on disk so the failure can be diagnosed.
	_, statErr := os.Stat(filepath.Join(cfg.InstallRoot, "systems_cache.json"))
	require.NoError(t, statErr)
}
