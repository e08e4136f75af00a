package guard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcquireRelease ensures the marker appears while held and disappears after release.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	release, err := Acquire(context.Background(), dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, MarkerFilename))
	require.NoError(t, err)

	release()

	_, err = os.Stat(filepath.Join(dir, MarkerFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestAcquire_HeldByFreshMarker ensures a second acquire fails while the first holds.
func TestAcquire_HeldByFreshMarker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	release, err := Acquire(context.Background(), dir)
	require.NoError(t, err)

	defer release()

	_, err = Acquire(context.Background(), dir)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

// TestAcquire_RecoversStaleMarker ensures an abandoned marker older than its
// lifetime is cleared and the lock is taken over.
func TestAcquire_RecoversStaleMarker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	markerPath := filepath.Join(dir, MarkerFilename)
	require.NoError(t, os.WriteFile(markerPath, nil, 0o644))

	stale := time.Now().Add(-2 * markerLifetime)
	require.NoError(t, os.Chtimes(markerPath, stale, stale))

	release, err := Acquire(context.Background(), dir)
	require.NoError(t, err)

	release()
}
