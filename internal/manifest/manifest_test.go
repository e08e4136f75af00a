package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile is a helper creating a file with content under dir.
func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

// TestFileChecksum verifies the token format and that identical content
// reproduces the exact stored token.
func TestFileChecksum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := []byte("intel channel snapshot")
	path := writeFile(t, dir, "systems_cache.json", content)

	token, err := FileChecksum(path)
	require.NoError(t, err)

	digest := sha256.Sum256(content)
	require.Equal(t, ChecksumPrefix+hex.EncodeToString(digest[:]), token)

	// Same content elsewhere hashes to the same token.
	other := writeFile(t, dir, "copy.json", content)

	otherToken, err := FileChecksum(other)
	require.NoError(t, err)
	require.Equal(t, token, otherToken)
}

// TestFileChecksum_Missing ensures a read failure is surfaced.
func TestFileChecksum_Missing(t *testing.T) {
	t.Parallel()

	_, err := FileChecksum(filepath.Join(t.TempDir(), "absent.bin"))
	require.Error(t, err)
}

// TestChecksumBytes covers prefix stripping and malformed tokens.
func TestChecksumBytes(t *testing.T) {
	t.Parallel()

	digest := sha256.Sum256([]byte("payload"))
	token := ChecksumPrefix + hex.EncodeToString(digest[:])

	raw, err := ChecksumBytes(token)
	require.NoError(t, err)
	require.Equal(t, digest[:], raw)

	_, err = ChecksumBytes("md5:abcdef")
	require.ErrorIs(t, err, ErrBadChecksumToken)

	_, err = ChecksumBytes(ChecksumPrefix + "not-hex")
	require.ErrorIs(t, err, ErrBadChecksumToken)

	// Truncated digest.
	_, err = ChecksumBytes(ChecksumPrefix + "aabb")
	require.ErrorIs(t, err, ErrBadChecksumToken)
}

// TestBuild_SkipsMissingFiles verifies the manifest is a strict subset of
// the configured list when files are absent at build time.
func TestBuild_SkipsMissingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "radlocal", []byte("binary"))
	writeFile(t, dir, "esi_ids.json", []byte("{}"))

	meta := Metadata{
		Version:      "1.2.0",
		Tag:          "v1.2.0",
		ReleaseDate:  time.Now().UTC(),
		DownloadBase: "https://releases.example.com/v1.2.0",
	}

	m, err := Build(context.Background(), dir,
		[]string{"radlocal", "systems_cache.json", "esi_ids.json"}, meta)
	require.NoError(t, err)

	require.Len(t, m.Files, 2)
	require.Contains(t, m.Files, "radlocal")
	require.Contains(t, m.Files, "esi_ids.json")
	require.NotContains(t, m.Files, "systems_cache.json")
}

// TestEncodeDecode_Roundtrip ensures the JSON wire format survives a round trip.
func TestEncodeDecode_Roundtrip(t *testing.T) {
	t.Parallel()

	want := New(Metadata{
		Version:      "2.3.1",
		Tag:          "v2.3.1",
		ReleaseDate:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		ReleaseNotes: "ansiblex detection fixes",
		DownloadBase: "https://releases.example.com/v2.3.1",
	})
	want.Files["a.bin"] = ChecksumPrefix + "aa"

	data, err := want.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestSaveLoad ensures the manifest persists to and loads from disk.
func TestSaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), Filename)

	want := New(Metadata{Version: "1.0.0", Tag: "v1.0.0"})
	want.Files["radlocal"] = ChecksumPrefix + "00"

	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want.Files, got.Files)
	require.Equal(t, want.Tag, got.Tag)
}

// TestFileURL verifies URL composition against the download base.
func TestFileURL(t *testing.T) {
	t.Parallel()

	m := New(Metadata{DownloadBase: "https://releases.example.com/v1.2.0/"})

	got, err := m.FileURL("systems_cache.json")
	require.NoError(t, err)
	require.Equal(t, "https://releases.example.com/v1.2.0/systems_cache.json", got)

	m.DownloadBase = ""
	_, err = m.FileURL("systems_cache.json")
	require.Error(t, err)
}

// TestDiffAgainst covers the manifest scenario: one matching file, one
// missing file, and one mismatching file.
func TestDiffAgainst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.bin", []byte("alpha"))
	writeFile(t, dir, "c.bin", []byte("stale content"))

	aToken, err := FileChecksum(filepath.Join(dir, "a.bin"))
	require.NoError(t, err)

	m := New(Metadata{Version: "1.1.0", Tag: "v1.1.0"})
	m.Files["a.bin"] = aToken
	m.Files["b.bin"] = ChecksumPrefix + "bb"
	m.Files["c.bin"] = ChecksumPrefix + "cc"

	diff, err := m.DiffAgainst(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.bin"}, diff.Unchanged)
	require.Equal(t, []string{"b.bin", "c.bin"}, diff.Stale)
}

// TestEntryPath rejects entry names that would land outside the root.
func TestEntryPath(t *testing.T) {
	t.Parallel()

	root := "/home/pilot/.local/share/radlocal"

	got, err := EntryPath(root, "systems_cache.json")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "systems_cache.json"), got)

	got, err = EntryPath(root, "data/esi_ids.json")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data", "esi_ids.json"), got)

	for _, name := range []string{
		"../escaped.bin",
		"data/../../escaped.bin",
		"/etc/escaped.bin",
		"..",
		"",
	} {
		_, err = EntryPath(root, name)
		require.ErrorIs(t, err, ErrUnsafeEntryPath, name)
	}
}

// TestDiffAgainst_UnsafeEntry ensures an escaping entry is never hashed in
// place; it surfaces as stale so the update pass rejects it per file.
func TestDiffAgainst_UnsafeEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.bin", []byte("alpha"))

	aToken, err := FileChecksum(filepath.Join(dir, "a.bin"))
	require.NoError(t, err)

	m := New(Metadata{Version: "1.1.0", Tag: "v1.1.0"})
	m.Files["a.bin"] = aToken
	m.Files["../escaped.bin"] = ChecksumPrefix + "ee"

	diff, err := m.DiffAgainst(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.bin"}, diff.Unchanged)
	require.Equal(t, []string{"../escaped.bin"}, diff.Stale)

	require.ErrorIs(t, m.Verify(dir), ErrUnsafeEntryPath)
}

// TestVerify checks the post-update invariant helper.
func TestVerify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.bin", []byte("alpha"))

	token, err := FileChecksum(filepath.Join(dir, "a.bin"))
	require.NoError(t, err)

	m := New(Metadata{Version: "1.0.0"})
	m.Files["a.bin"] = token

	require.NoError(t, m.Verify(dir))

	m.Files["a.bin"] = ChecksumPrefix + "00"
	require.ErrorIs(t, m.Verify(dir), ErrChecksumMismatch)
}
