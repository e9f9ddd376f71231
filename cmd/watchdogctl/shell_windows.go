// SPDX-License-Identifier: MPL-2.0

//go:build windows

package cmd

import (
	"os"
	"os/exec"
)

// attachTerminal runs cmd with inherited stdio. Windows has no pty to
// allocate here; the engine CLI's own console handling takes over.
func attachTerminal(cmd *exec.Cmd) error {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
