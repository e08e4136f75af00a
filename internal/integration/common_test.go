package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/radlocal/radlocal-deploy/internal/config"
	"github.com/radlocal/radlocal-deploy/internal/manifest"
)

// releaseHost simulates the release index and asset hosting behind one server.
type releaseHost struct {
	server *httptest.Server

	mu sync.Mutex
	// tag is the latest published tag, empty for "no release ever published".
	tag string
	// assets maps asset names to their content for the current tag.
	assets map[string][]byte
	// downloads counts GET requests per asset name.
	downloads map[string]int
}

// newReleaseHost starts a test server publishing the provided tag and assets.
func newReleaseHost(t *testing.T, tag string, assets map[string][]byte) *releaseHost {
	t.Helper()

	if assets == nil {
		assets = make(map[string][]byte)
	}

	host := &releaseHost{
		tag:       tag,
		assets:    assets,
		downloads: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/radlocal/radlocal/releases/latest",
		func(w http.ResponseWriter, _ *http.Request) {
			host.mu.Lock()
			currentTag := host.tag
			host.mu.Unlock()

			if currentTag == "" {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}

			_, _ = fmt.Fprintf(w, `{"id": 42, "prerelease": false, "tag_name": %q}`, currentTag)
		})

	mux.HandleFunc("/radlocal/radlocal/releases/download/",
		func(w http.ResponseWriter, r *http.Request) {
			name := filepath.Base(r.URL.Path)

			host.mu.Lock()
			body, found := host.assets[name]
			host.downloads[name]++
			host.mu.Unlock()

			if !found {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}

			_, _ = w.Write(body)
		})

	host.server = httptest.NewServer(mux)
	t.Cleanup(host.server.Close)

	return host
}

// downloadCount returns how many times the asset was requested.
func (h *releaseHost) downloadCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.downloads[name]
}

// setAsset replaces one asset's content.
func (h *releaseHost) setAsset(name string, body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.assets[name] = body
}

// testConfig produces settings pointing every URL at the release host and
// every directory into the test's temporary tree.
func testConfig(t *testing.T, host *releaseHost, dir string) (*config.Config, string) {
	t.Helper()

	cfg := &config.Config{
		Owner:           "radlocal",
		Repo:            "radlocal",
		AppName:         "radlocal",
		Platform:        "linux-x86_64",
		InstallRoot:     filepath.Join(dir, "install"),
		BinDir:          filepath.Join(dir, "bin"),
		ApplicationsDir: filepath.Join(dir, "applications"),
		IndexBase:       host.server.URL,
		ReleasesBase:    host.server.URL,
		Timeout:         5 * time.Second,
	}

	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, cfg))

	return cfg, cfgPath
}

// manifestJSON builds manifest bytes for the provided file contents, with
// the download base pointing at the release host.
func manifestJSON(t *testing.T, host *releaseHost, tag string, files map[string][]byte) []byte {
	t.Helper()

	m := manifest.New(manifest.Metadata{
		Version:      tag[1:],
		Tag:          tag,
		ReleaseDate:  time.Now().UTC(),
		DownloadBase: host.server.URL + "/radlocal/radlocal/releases/download/" + tag,
	})

	for name, body := range files {
		m.Files[name] = checksumToken(body)
	}

	data, err := m.Encode()
	require.NoError(t, err)

	return data
}

// checksumToken returns the manifest token for content.
func checksumToken(body []byte) string {
	digest := sha256.Sum256(body)
	return manifest.ChecksumPrefix + hex.EncodeToString(digest[:])
}

// buildBundle produces a .tar.gz wrapping the files in a single top-level
// directory, the way published bundles are laid out.
func buildBundle(t *testing.T, topLevel string, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	require.NoError(t, tarWriter.WriteHeader(&tar.Header{
		Name:     topLevel + "/",
		Typeflag: tar.TypeDir,
		Mode:     0o755,
	}))

	for name, body := range files {
		require.NoError(t, tarWriter.WriteHeader(&tar.Header{
			Name:     topLevel + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(body)),
		}))

		_, err := tarWriter.Write(body)
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzipWriter.Close())

	return buf.Bytes()
}
