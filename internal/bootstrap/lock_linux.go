// SPDX-License-Identifier: MPL-2.0

//go:build linux

package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"watchdogctl/internal/issue"
)

// lockFileName is the well-known lock file name shared by all watchdogctl
// processes. The zero-byte file is harmless if orphaned; the kernel releases
// the flock automatically when the fd closes, including on process crash.
const lockFileName = "watchdogctl.lock"

// runLock holds a non-blocking exclusive flock on a well-known file path.
// The bootstrap steps are check-then-act (does the container exist, is the
// line in sshd_config); two interleaved runs could each pass a check and
// double-apply the act, so a second run refuses to start instead of queueing.
//
// The lock file lives in $XDG_RUNTIME_DIR (per-user tmpfs, auto-cleaned)
// with a fallback to os.TempDir() when the env var is unset.
type runLock struct {
	file *os.File
}

// acquireRunLock opens (or creates) the lock file and tries the flock once.
func acquireRunLock() (*runLock, error) {
	return acquireRunLockAt(lockFilePath())
}

// acquireRunLockAt is the path-parameterized variant backing acquireRunLock.
// A lock held by another process fails immediately with an actionable error.
func acquireRunLockAt(path string) (*runLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, concurrentRunError(path, err)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &runLock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. It is safe to
// call multiple times; subsequent calls are no-ops.
func (l *runLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Debug("lock file close failed", "error", err)
	}
	l.file = nil
}

// lockFilePath returns the path for the cross-process lock file.
// Prefers $XDG_RUNTIME_DIR (per-user tmpfs), falls back to os.TempDir().
func lockFilePath() string {
	return lockFilePathWith(os.Getenv)
}

// lockFilePathWith returns the lock file path using the provided getenv
// function. This enables testing without mutating process-global state.
func lockFilePathWith(getenv func(string) string) string {
	dir := getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, lockFileName)
}

func concurrentRunError(path string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("acquiring the bootstrap run lock").
		WithResource(path).
		WithSuggestion("Wait for the other bootstrap run to finish, then retry").
		WithIssue(issue.ConcurrentRunId).
		Wrap(cause).
		BuildError()
}
