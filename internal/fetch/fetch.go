package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/radlocal/radlocal-deploy/internal/logger"
)

// DefaultTimeout bounds a single download when no other timeout is configured.
const DefaultTimeout = 10 * time.Second

// tempSuffix is appended to the destination path while a transfer is in flight.
const tempSuffix = ".tmp"

// destDirMode is used when creating destination directories for downloads.
const destDirMode os.FileMode = 0o755

// ErrUnexpectedStatus is returned when the server answers with a non-success status.
var ErrUnexpectedStatus = errors.New("unexpected http status")

// Fetcher retrieves individual files and full bundles over HTTP.
// Each call is a single attempt with a mandatory timeout; retry policy,
// if any, belongs to the caller.
type Fetcher struct {
	// client is the HTTP client used for all transfers.
	client *http.Client
	// userAgent identifies the deploy tooling to the release host.
	userAgent string
}

// Option configures fetcher behaviour.
type Option func(*Fetcher)

// WithTimeout sets the per-call timeout for downloads.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// WithUserAgent overrides the User-Agent header sent with requests.
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		if userAgent != "" {
			f.userAgent = userAgent
		}
	}
}

// NewFetcher creates a fetcher with the default timeout.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: "radlocal-deploy",
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// DownloadFile streams the response body to destPath. The transfer lands in a
// temporary sibling first and is renamed over the destination only after the
// full body has been copied, so a failure never leaves a partial file at the
// final path.
func (f *Fetcher) DownloadFile(ctx context.Context, fileURL, destPath string) error {
	response, err := f.get(ctx, fileURL)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if err = os.MkdirAll(filepath.Dir(destPath), destDirMode); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	tempPath := destPath + tempSuffix

	tempFile, err := os.Create(filepath.Clean(tempPath))
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	written, err := io.Copy(tempFile, response.Body)
	if err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)

		return fmt.Errorf("download %s: %w", fileURL, err)
	}

	if err = tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("finish %s: %w", tempPath, err)
	}

	if err = os.Rename(tempPath, destPath); err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("move %s into place: %w", destPath, err)
	}

	logger.DebugKV(ctx, "Downloaded file", "url", fileURL, "path", destPath, "bytes", written)

	return nil
}

// DownloadArchive retrieves the full release bundle with the same contract
// as DownloadFile.
func (f *Fetcher) DownloadArchive(ctx context.Context, archiveURL, destPath string) error {
	return f.DownloadFile(ctx, archiveURL, destPath)
}

// FetchBytes retrieves a small remote file (such as the release manifest)
// fully into memory.
func (f *Fetcher) FetchBytes(ctx context.Context, fileURL string) ([]byte, error) {
	response, err := f.get(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileURL, err)
	}

	return data, nil
}

// get issues the request and rejects non-success statuses.
func (f *Fetcher) get(ctx context.Context, fileURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	response, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", fileURL, err)
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()

		return nil, fmt.Errorf("%s, %s: %w", fileURL, response.Status, ErrUnexpectedStatus)
	}

	return response, nil
}
