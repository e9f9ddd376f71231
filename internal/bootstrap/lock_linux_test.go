// SPDX-License-Identifier: MPL-2.0

//go:build linux

package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"watchdogctl/internal/issue"
	"watchdogctl/internal/testutil"
)

func TestAcquireRunLock_CreatesFile(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "test.lock")
	lock, err := acquireRunLockAt(lockPath)
	if err != nil {
		t.Fatalf("acquireRunLockAt() error: %v", err)
	}
	defer lock.Release()

	if _, statErr := os.Stat(lockPath); statErr != nil {
		t.Errorf("lock file not found at %s: %v", lockPath, statErr)
	}
}

func TestAcquireRunLock_SecondAcquireRefused(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "test.lock")
	lockA, err := acquireRunLockAt(lockPath)
	if err != nil {
		t.Fatalf("acquireRunLockAt A: %v", err)
	}
	defer lockA.Release()

	// flock conflicts across open file descriptions, so a second open in
	// the same process behaves like a second bootstrap process.
	lockB, err := acquireRunLockAt(lockPath)
	if err == nil {
		lockB.Release()
		t.Fatal("second acquire succeeded while the lock was held")
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected an actionable error, got %v", err)
	}
	if ae.Guide() == nil || ae.Guide().Id() != issue.ConcurrentRunId {
		t.Fatalf("expected the concurrent-run guide, got %v", ae.Guide())
	}
}

func TestAcquireRunLock_ReleaseThenReacquire(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "test.lock")
	lockA, err := acquireRunLockAt(lockPath)
	if err != nil {
		t.Fatalf("acquireRunLockAt A: %v", err)
	}
	lockA.Release()

	lockB, err := acquireRunLockAt(lockPath)
	if err != nil {
		t.Fatalf("acquireRunLockAt after release: %v", err)
	}
	lockB.Release()
}

func TestRunLock_Release_Idempotent(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "test.lock")
	lock, err := acquireRunLockAt(lockPath)
	if err != nil {
		t.Fatalf("acquireRunLockAt() error: %v", err)
	}

	// Double-release must not panic.
	lock.Release()
	lock.Release()
}

func TestRunLock_Release_NilReceiver(t *testing.T) {
	t.Parallel()

	// Nil receiver must not panic on error paths.
	var lock *runLock
	lock.Release()
}

func TestRun_RefusedWhileLocked(t *testing.T) {
	fake := testutil.NewFakeExec()
	o := newTestOrchestrator(t, fake, Options{})

	held, err := acquireRunLockAt(o.lockPath)
	if err != nil {
		t.Fatalf("pre-acquire lock: %v", err)
	}
	defer held.Release()

	sum, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected the run to refuse while the lock is held")
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected an actionable error, got %v", err)
	}
	if ae.Guide() == nil || ae.Guide().Id() != issue.ConcurrentRunId {
		t.Fatalf("expected the concurrent-run guide, got %v", ae.Guide())
	}
	if sum != nil {
		t.Errorf("expected no summary, got %+v", sum)
	}
	if lines := fake.Lines(); len(lines) != 0 {
		t.Errorf("expected no commands before the lock, got:\n%v", lines)
	}
}

func TestLockFilePath_FallbackToTempDir(t *testing.T) {
	t.Parallel()

	path := lockFilePathWith(func(string) string { return "" })
	expected := filepath.Join(os.TempDir(), lockFileName)
	if path != expected {
		t.Errorf("lockFilePathWith() = %q, want %q", path, expected)
	}
}

func TestLockFilePath_UsesXDGRuntimeDir(t *testing.T) {
	t.Parallel()

	customDir := t.TempDir()
	path := lockFilePathWith(func(key string) string {
		if key == "XDG_RUNTIME_DIR" {
			return customDir
		}
		return ""
	})
	expected := filepath.Join(customDir, lockFileName)
	if path != expected {
		t.Errorf("lockFilePathWith() = %q, want %q", path, expected)
	}
}
