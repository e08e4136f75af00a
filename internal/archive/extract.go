package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/radlocal/radlocal-deploy/internal/logger"
)

const (
	// defaultDirMode is applied when a tar entry carries no usable directory mode.
	defaultDirMode os.FileMode = 0o755
)

var (
	// ErrUnsafePath is returned for entries that would escape the destination directory.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// ExtractTarGz unpacks a gzip-compressed tar stream into dest, stripping
// stripComponents leading path elements from every entry. Release bundles
// wrap their content in a single top-level directory, so the installer
// extracts with stripComponents = 1 to land files directly under the
// install root.
func ExtractTarGz(ctx context.Context, r io.Reader, dest string, stripComponents int) error {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}

	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		name, keep := stripPath(header.Name, stripComponents)
		if !keep {
			continue
		}

		target, err := secureJoin(dest, name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, dirMode(header)); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err = extractFile(tarReader, target, header); err != nil {
				return err
			}
		case tar.TypeSymlink:
			// Symlinks inside bundles are allowed as long as they stay relative.
			if filepath.IsAbs(header.Linkname) || strings.Contains(header.Linkname, "..") {
				return fmt.Errorf("symlink %s -> %s: %w", name, header.Linkname, ErrUnsafePath)
			}

			_ = os.Remove(target)

			if err = os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}
		default:
			logger.DebugKV(ctx, "Skipping unsupported tar entry",
				"name", header.Name, "type", header.Typeflag)
		}
	}
}

// ExtractArchive opens the archive at path and unpacks it into dest.
func ExtractArchive(ctx context.Context, archivePath, dest string, stripComponents int) error {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	return ExtractTarGz(ctx, file, dest, stripComponents)
}

// extractFile writes a regular tar entry to target, creating parent directories.
func extractFile(tarReader *tar.Reader, target string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", target, err)
	}

	mode := header.FileInfo().Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	outputFile, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err = io.Copy(outputFile, tarReader); err != nil {
		_ = outputFile.Close()

		return fmt.Errorf("extract %s: %w", target, err)
	}

	if err = outputFile.Close(); err != nil {
		return fmt.Errorf("finish %s: %w", target, err)
	}

	return nil
}

// stripPath removes count leading path components from a tar entry name.
// It reports false when the entry has nothing left after stripping.
func stripPath(name string, count int) (string, bool) {
	cleaned := strings.Trim(filepath.ToSlash(name), "/")
	if cleaned == "" || cleaned == "." {
		return "", false
	}

	parts := strings.Split(cleaned, "/")
	if len(parts) <= count {
		return "", false
	}

	return strings.Join(parts[count:], "/"), true
}

// secureJoin joins name onto dest and rejects paths escaping it.
func secureJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))

	cleanDest := filepath.Clean(dest) + string(os.PathSeparator)
	if !strings.HasPrefix(target, cleanDest) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafePath)
	}

	return target, nil
}

// dirMode returns a usable permission set for a directory entry.
func dirMode(header *tar.Header) os.FileMode {
	mode := header.FileInfo().Mode().Perm()
	if mode == 0 {
		return defaultDirMode
	}

	return mode
}
