package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/radlocal/radlocal-deploy/internal/logger"
)

const (
	// defaultIndexBase is the release-hosting API queried for the latest tag.
	defaultIndexBase = "https://api.github.com"

	// defaultDownloadBase is where release assets are published.
	defaultDownloadBase = "https://github.com"

	// DefaultTimeout bounds a single release-index call when no other timeout applies.
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes bounds how much of the index response we are willing to read.
	maxResponseBytes = 1 << 20
)

var (
	// ErrNoRelease is returned when the latest release tag cannot be determined:
	// the index is unreachable, the response is empty, or no release was ever published.
	ErrNoRelease = errors.New("no published release found")
)

// Resolver queries the release index for a project's newest published tag.
type Resolver struct {
	// indexBase is the API root, overridable in tests.
	indexBase string
	// downloadBase is the asset-hosting root, overridable in tests.
	downloadBase string
	// client is the HTTP client used for index calls.
	client *http.Client
}

// Option configures resolver behaviour.
type Option func(*Resolver)

// WithIndexBase overrides the release index API root (used in tests).
func WithIndexBase(base string) Option {
	return func(r *Resolver) {
		if base != "" {
			r.indexBase = base
		}
	}
}

// WithDownloadBase overrides the asset-hosting root (used in tests).
func WithDownloadBase(base string) Option {
	return func(r *Resolver) {
		if base != "" {
			r.downloadBase = base
		}
	}
}

// WithTimeout sets the per-call timeout for index requests.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.client.Timeout = timeout
		}
	}
}

// NewResolver creates a resolver against the public release index.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		indexBase:    defaultIndexBase,
		downloadBase: defaultDownloadBase,
		client:       &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// latestResponse carries the single field we consume from the index response.
// Everything else in the payload is deliberately treated as opaque, so
// unrelated schema changes cannot break tag resolution.
type latestResponse struct {
	TagName string `json:"tag_name"`
}

// LatestTag issues one request to the release index and extracts the tag of
// the newest published release. A missing tag field signals that no release
// has ever been published.
func (r *Resolver) LatestTag(ctx context.Context, owner, repo string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.indexBase, owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build index request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	response, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("query release index: %w: %w", ErrNoRelease, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %s: %w", endpoint, response.Status, ErrNoRelease)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read index response: %w", err)
	}

	if len(data) == 0 {
		return "", fmt.Errorf("empty index response: %w", ErrNoRelease)
	}

	var latest latestResponse
	if err = json.Unmarshal(data, &latest); err != nil {
		return "", fmt.Errorf("decode index response: %w: %w", ErrNoRelease, err)
	}

	if latest.TagName == "" {
		return "", fmt.Errorf("index response has no tag field: %w", ErrNoRelease)
	}

	logger.DebugKV(ctx, "Resolved latest release tag", "owner", owner, "repo", repo, "tag", latest.TagName)

	return latest.TagName, nil
}

// BundleURL composes the download URL of the full release bundle for a tag.
func (r *Resolver) BundleURL(owner, repo, tag, bundleName string) string {
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s", r.downloadBase, owner, repo, tag, bundleName)
}

// ManifestURL composes the download URL of the release manifest for a tag.
func (r *Resolver) ManifestURL(owner, repo, tag, manifestName string) string {
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s", r.downloadBase, owner, repo, tag, manifestName)
}

// DownloadBase composes the base URL for per-file downloads within a tag,
// matching the download_base field stamped into published manifests.
func (r *Resolver) DownloadBase(owner, repo, tag string) string {
	return fmt.Sprintf("%s/%s/%s/releases/download/%s", r.downloadBase, owner, repo, tag)
}
