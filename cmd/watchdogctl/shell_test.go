// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os/exec"
	"testing"
)

func TestShellExitCode(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		if err := shellExitCode(nil); err != nil {
			t.Errorf("shellExitCode(nil) = %v", err)
		}
	})

	t.Run("exit error carries the code", func(t *testing.T) {
		if _, err := exec.LookPath("sh"); err != nil {
			t.Skip("sh not available")
		}
		runErr := exec.Command("sh", "-c", "exit 42").Run()
		if runErr == nil {
			t.Fatal("expected the command to fail")
		}

		var exitErr *ExitError
		if !errors.As(shellExitCode(runErr), &exitErr) {
			t.Fatalf("expected an ExitError, got %v", runErr)
		}
		if exitErr.Code != 42 {
			t.Errorf("Code = %d, want 42", exitErr.Code)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("start pty: boom")
		if err := shellExitCode(cause); !errors.Is(err, cause) {
			t.Errorf("expected the original error, got %v", err)
		}
	})
}
