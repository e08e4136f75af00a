package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds deployment parameters shared by the radlocal binaries.
type Config struct {
	// Owner is the GitHub account that publishes releases.
	Owner string `yaml:"github_owner"`
	// Repo is the GitHub repository that publishes releases.
	Repo string `yaml:"github_repo"`
	// AppName is the name of the deployed application and of its entry-point executable.
	AppName string `yaml:"app_name"`
	// Platform is the bundle suffix identifying the target platform family.
	Platform string `yaml:"platform"`
	// InstallRoot is the directory holding all installed application files.
	InstallRoot string `yaml:"install_root"`
	// BinDir is the per-user executable directory receiving the entry-point symlink.
	BinDir string `yaml:"bin_dir"`
	// ApplicationsDir is the per-user directory receiving the menu-entry file.
	ApplicationsDir string `yaml:"applications_dir"`
	// UpdatableFiles lists the relative paths the packager hashes into the manifest.
	UpdatableFiles []string `yaml:"updatable_files"`
	// IndexBase optionally overrides the release index API root (mirrors, tests).
	IndexBase string `yaml:"index_base,omitempty"`
	// ReleasesBase optionally overrides the release asset-hosting root (mirrors, tests).
	ReleasesBase string `yaml:"releases_base,omitempty"`
	// Timeout is the duration for individual network operations.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for deployment settings.
	DefaultConfigFilename = "radlocal-deploy-settings.yaml"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultOwner and DefaultRepo identify the published release index.
	DefaultOwner = "radlocal"
	DefaultRepo  = "radlocal"

	// DefaultAppName is the deployed application and entry-point executable name.
	DefaultAppName = "radlocal"

	// DefaultPlatform is the only bundle platform family we publish.
	DefaultPlatform = "linux-x86_64"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errOwnerRequired is returned when the release owner is missing.
	errOwnerRequired = errors.New("github owner must be provided")
	// errRepoRequired is returned when the release repository is missing.
	errRepoRequired = errors.New("github repository must be provided")
	// errAppNameRequired is returned when the application name is missing.
	errAppNameRequired = errors.New("application name must be provided")
	// errInstallRootRequired is returned when the install root is missing.
	errInstallRootRequired = errors.New("install root must be provided")
)

// DefaultUpdatableFiles returns the relative paths covered by the update manifest.
// The set mirrors what ships inside the release bundle: the entry-point
// executable plus the data caches that change between releases.
func DefaultUpdatableFiles() []string {
	return []string{
		DefaultAppName,
		"systems_cache.json",
		"esi_ids.json",
	}
}

// Default produces settings targeting the current user's home directory layout:
// the install root under ~/.local/share, the symlink under ~/.local/bin and the
// menu entry under ~/.local/share/applications.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg := &Config{
		Owner:           DefaultOwner,
		Repo:            DefaultRepo,
		AppName:         DefaultAppName,
		Platform:        DefaultPlatform,
		InstallRoot:     filepath.Join(home, ".local", "share", DefaultAppName),
		BinDir:          filepath.Join(home, ".local", "bin"),
		ApplicationsDir: filepath.Join(home, ".local", "share", "applications"),
		UpdatableFiles:  DefaultUpdatableFiles(),
		Timeout:         DefaultTimeout,
	}

	return cfg, nil
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Owner == "" {
		return errOwnerRequired
	}

	if cfg.Repo == "" {
		return errRepoRequired
	}

	if cfg.AppName == "" {
		return errAppNameRequired
	}

	// Every binary resolves its target paths from the install root; a config
	// without one would make them operate on cwd-relative paths.
	if cfg.InstallRoot == "" {
		return errInstallRootRequired
	}

	if cfg.Platform == "" {
		cfg.Platform = DefaultPlatform
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if len(cfg.UpdatableFiles) == 0 {
		cfg.UpdatableFiles = DefaultUpdatableFiles()
	}

	return nil
}

// EntryPoint returns the absolute path of the installed entry-point executable.
func (c *Config) EntryPoint() string {
	return filepath.Join(c.InstallRoot, c.AppName)
}

// SymlinkPath returns the path of the command symlink in the per-user bin directory.
func (c *Config) SymlinkPath() string {
	return filepath.Join(c.BinDir, c.AppName)
}

// DesktopEntryPath returns the path of the menu-entry file.
func (c *Config) DesktopEntryPath() string {
	return filepath.Join(c.ApplicationsDir, c.AppName+".desktop")
}

// SettingsPath returns where the installer persists settings inside the install root.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.InstallRoot, DefaultConfigFilename)
}

// BundleName returns the release archive name for the given tag,
// following the <app>-<tag>-<platform>.tar.gz convention.
func (c *Config) BundleName(tag string) string {
	return fmt.Sprintf("%s-%s-%s.tar.gz", c.AppName, tag, c.Platform)
}
