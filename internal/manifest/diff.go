package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/radlocal/radlocal-deploy/internal/logger"
)

// Diff partitions manifest entries by comparing them against the live local tree.
type Diff struct {
	// Unchanged lists entries whose local content matches the manifest checksum.
	Unchanged []string
	// Stale lists entries that are missing locally or whose checksum differs.
	Stale []string
}

// DiffAgainst recomputes local hashes under root for every manifest entry and
// partitions the entries into unchanged and stale. A missing local file counts
// as a mismatch. There is no persisted local manifest: hashes are always taken
// from disk so a manual edit to an installed file is detected by content.
func (m *Manifest) DiffAgainst(ctx context.Context, root string) (*Diff, error) {
	diff := &Diff{
		Unchanged: make([]string, 0, len(m.Files)),
		Stale:     make([]string, 0, defaultMapCapacity),
	}

	for _, name := range m.SortedFiles() {
		expected := m.Files[name]

		localPath, err := EntryPath(root, name)
		if err != nil {
			// Never hash outside the root. The entry stays stale so the
			// update pass rejects it with a per-file error.
			logger.WarnKV(ctx, "Manifest entry has an unsafe path", "file", name, "error", err)

			diff.Stale = append(diff.Stale, name)

			continue
		}

		if _, err := os.Stat(localPath); errors.Is(err, os.ErrNotExist) {
			diff.Stale = append(diff.Stale, name)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", localPath, err)
		}

		actual, err := FileChecksum(localPath)
		if err != nil {
			// An installed file we cannot read is due for replacement anyway.
			logger.WarnKV(ctx, "Could not hash installed file, marking stale",
				"file", name, "error", err)

			diff.Stale = append(diff.Stale, name)

			continue
		}

		if actual == expected {
			diff.Unchanged = append(diff.Unchanged, name)
		} else {
			diff.Stale = append(diff.Stale, name)
		}
	}

	return diff, nil
}

// Verify checks that every manifest entry's local content under root matches
// its checksum token. It reports the first mismatch as ErrChecksumMismatch.
func (m *Manifest) Verify(root string) error {
	for _, name := range m.SortedFiles() {
		expected := m.Files[name]

		localPath, err := EntryPath(root, name)
		if err != nil {
			return err
		}

		actual, err := FileChecksum(localPath)
		if err != nil {
			return err
		}

		if actual != expected {
			return fmt.Errorf("%s: %w", name, ErrChecksumMismatch)
		}
	}

	return nil
}
