package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/radlocal/radlocal-deploy/internal/logger"
)

const (
	// Filename is the manifest file published alongside each release.
	Filename = "version.json"

	// ChecksumPrefix identifies the hash algorithm inside a checksum token.
	ChecksumPrefix = "sha256:"

	// DefaultFileMode is used when producing artifacts for distribution.
	DefaultFileMode os.FileMode = 0o755

	// defaultMapCapacity is the default initial capacity for maps and slices.
	defaultMapCapacity = 16
)

var (
	// ErrBadChecksumToken is returned for tokens without the sha256: prefix or with invalid hex.
	ErrBadChecksumToken = errors.New("malformed checksum token")
	// ErrChecksumMismatch is returned when a file's content does not match its manifest entry.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnsafeEntryPath is returned for entry names that would escape the install root.
	ErrUnsafeEntryPath = errors.New("manifest entry escapes the install root")
	// errNoDownloadBase is returned when a manifest has no base URL for per-file downloads.
	errNoDownloadBase = errors.New("manifest has no download base")
)

// Manifest is the content-addressed description of a published release:
// release metadata plus a mapping of relative file path to checksum token.
type Manifest struct {
	// Version is the semantic version of this release.
	Version string `json:"version"`
	// Tag is the release identifier used to build download URLs.
	Tag string `json:"tag"`
	// ReleaseDate is the publication timestamp (informational only).
	ReleaseDate time.Time `json:"release_date"`
	// ReleaseNotes is an optional human-readable summary of the release.
	ReleaseNotes string `json:"release_notes,omitempty"`
	// DownloadBase is the base URL from which individual files can be fetched.
	DownloadBase string `json:"download_base"`
	// Files maps relative file paths to their "sha256:<hex>" checksum tokens.
	Files map[string]string `json:"files"`
}

// Metadata carries the release fields stamped into a freshly built manifest.
type Metadata struct {
	Version      string
	Tag          string
	ReleaseDate  time.Time
	ReleaseNotes string
	DownloadBase string
}

// New produces a Manifest initialized with the provided release metadata.
func New(meta Metadata) *Manifest {
	return &Manifest{
		Version:      meta.Version,
		Tag:          meta.Tag,
		ReleaseDate:  meta.ReleaseDate,
		ReleaseNotes: meta.ReleaseNotes,
		DownloadBase: meta.DownloadBase,
		Files:        make(map[string]string, defaultMapCapacity),
	}
}

// FileChecksum streams the file content through SHA-256 and returns
// its checksum token ("sha256:" + lowercase hex digest).
func FileChecksum(filePath string) (string, error) {
	file, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", filePath, err)
	}

	return ChecksumPrefix + hex.EncodeToString(hasher.Sum(nil)), nil
}

// ChecksumBytes strips the algorithm prefix from a token and decodes the raw digest.
func ChecksumBytes(token string) ([]byte, error) {
	digest, found := strings.CutPrefix(token, ChecksumPrefix)
	if !found {
		return nil, fmt.Errorf("%q: %w", token, ErrBadChecksumToken)
	}

	checksum, err := hex.DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", token, ErrBadChecksumToken)
	}

	if len(checksum) != sha256.Size {
		return nil, fmt.Errorf("%q: %w", token, ErrBadChecksumToken)
	}

	return checksum, nil
}

// Build hashes each of the provided relative paths under root into a manifest.
// A configured file that is absent at build time is skipped with a warning,
// so the manifest is allowed to be a strict subset of the configured list.
// Output is deterministic given identical file contents.
func Build(ctx context.Context, root string, relativePaths []string, meta Metadata) (*Manifest, error) {
	m := New(meta)

	for _, relativePath := range relativePaths {
		fullPath := filepath.Join(root, relativePath)

		if _, err := os.Stat(fullPath); errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Updatable file is absent, omitting from manifest", "file", relativePath)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", fullPath, err)
		}

		token, err := FileChecksum(fullPath)
		if err != nil {
			return nil, err
		}

		m.Files[relativePath] = token
	}

	return m, nil
}

// Decode parses manifest JSON.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if m.Files == nil {
		m.Files = make(map[string]string, defaultMapCapacity)
	}

	return &m, nil
}

// Load reads and parses a manifest file from disk.
func Load(path string) (*Manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return Decode(contents)
}

// Encode renders the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return data, nil
}

// Save writes the manifest JSON to the provided path.
func (m *Manifest) Save(path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFileMode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// FileURL composes the direct download URL for a manifest entry.
// path.Join normalizes duplicate slashes when composing the URL path.
func (m *Manifest) FileURL(name string) (string, error) {
	if m.DownloadBase == "" {
		return "", errNoDownloadBase
	}

	base, err := url.Parse(m.DownloadBase)
	if err != nil {
		return "", fmt.Errorf("parse download base: %w", err)
	}

	base.Path = path.Join(base.Path, name)

	return base.String(), nil
}

// EntryPath joins a manifest entry name onto root and rejects names that
// would land outside it. Manifest entries arrive over the network, so an
// absolute name or one smuggling ".." must never become a write target.
func EntryPath(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))

	cleanRoot := filepath.Clean(root) + string(os.PathSeparator)
	if !strings.HasPrefix(target, cleanRoot) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafeEntryPath)
	}

	return target, nil
}

// SortedFiles returns the manifest entry paths in lexical order,
// so iteration order is stable for logging and tests.
func (m *Manifest) SortedFiles() []string {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
