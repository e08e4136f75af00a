package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/radlocal/radlocal-deploy/internal/logger"
)

const (
	// MarkerFilename marks that an install or update run holds the install root.
	MarkerFilename = "radlocal-update-marker.bin"

	// markerLifetime is the period after which an abandoned marker is considered stale.
	markerLifetime = 30 * time.Second
)

// ErrAlreadyRunning indicates another installer or updater holds the marker.
var ErrAlreadyRunning = errors.New("another deploy run is already in progress")

// Acquire takes the exclusive run marker inside dir and returns a release
// function. Two concurrent instances racing to update the same install root
// is the failure mode this prevents; a marker older than its lifetime is
// recovered by killing the abandoned holder and removing the marker.
func Acquire(ctx context.Context, dir string, holderExecutables ...string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create marker directory: %w", err)
	}

	markerPath := filepath.Join(dir, MarkerFilename)

	if isHeld(ctx, markerPath, holderExecutables) {
		return nil, ErrAlreadyRunning
	}

	marker, err := os.Create(filepath.Clean(markerPath))
	if err != nil {
		return nil, fmt.Errorf("create run marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("close run marker: %w", err)
	}

	release := func() {
		if removeErr := os.Remove(markerPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.WarnKV(ctx, "Could not remove run marker", "path", markerPath, "error", removeErr)
		}
	}

	return release, nil
}

// isHeld checks presence of the marker and attempts recovery when it looks stale.
func isHeld(ctx context.Context, markerPath string, holderExecutables []string) bool {
	fileInfo, err := os.Stat(markerPath)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	if err != nil {
		logger.WarnKV(ctx, "Could not read run marker, assuming held", "path", markerPath, "error", err)
		return true
	}

	if time.Since(fileInfo.ModTime()) <= markerLifetime {
		return true
	}

	logger.Info(ctx, "Run marker is stale, attempting recovery")

	for _, executable := range holderExecutables {
		if err = terminateProcessByName(executable); err != nil {
			logger.WarnKV(ctx, "Could not terminate stale holder", "executable", executable, "error", err)
			return true
		}
	}

	if err = os.Remove(markerPath); err != nil {
		return true
	}

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}
