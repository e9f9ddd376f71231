// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"
	"testing"

	"watchdogctl/internal/issue"
	"watchdogctl/internal/testutil"
)

func TestHelperProcess(t *testing.T) { testutil.RunHelperProcess() }

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v0.3.0"
		Commit = "abc1234"
		BuildDate = "2026-08-01T10:00:00Z"

		got := getVersionString()
		want := "v0.3.0 (commit: abc1234, built: 2026-08-01T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("fallback for source builds", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "dev"
		Commit = "unknown"
		BuildDate = "unknown"

		got := getVersionString()
		want := "dev (built from source)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Run("plain error passes through", func(t *testing.T) {
		err := errors.New("something broke")
		if got := formatErrorForDisplay(err, false); got != "something broke" {
			t.Errorf("formatErrorForDisplay() = %q", got)
		}
	})

	t.Run("actionable error shows suggestions", func(t *testing.T) {
		err := issue.NewErrorContext().
			WithOperation("probing the container engine").
			WithResource("docker").
			WithSuggestion("Install docker or set WATCHDOG_ENGINE_BINARY").
			WithIssue(issue.ContainerEngineNotFoundId).
			Wrap(errors.New("exec: not found")).
			BuildError()

		got := formatErrorForDisplay(err, false)
		if !strings.Contains(got, "Install docker or set WATCHDOG_ENGINE_BINARY") {
			t.Errorf("expected the suggestion in output, got %q", got)
		}
		if strings.Contains(got, "Error chain:") {
			t.Errorf("non-verbose output must not include the chain, got %q", got)
		}
	})

	t.Run("verbose includes the error chain", func(t *testing.T) {
		err := issue.NewErrorContext().
			WithOperation("probing the container engine").
			WithResource("docker").
			WithIssue(issue.ContainerEngineNotFoundId).
			Wrap(errors.New("exec: not found")).
			BuildError()

		got := formatErrorForDisplay(err, true)
		for _, want := range []string{"Error chain:", "exec: not found"} {
			if !strings.Contains(got, want) {
				t.Errorf("expected %q in verbose output, got %q", want, got)
			}
		}
	})
}
