// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// attachTerminal runs cmd on a fresh pty with the invoking terminal in raw
// mode, so line editing, job control, and Ctrl-C all belong to the shell
// inside the container. Window size changes are forwarded for the lifetime
// of the session.
func attachTerminal(cmd *exec.Cmd) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}
	defer ptmx.Close()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	winch <- syscall.SIGWINCH
	defer func() { signal.Stop(winch); close(winch) }()

	stdinFd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(stdinFd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer term.Restore(stdinFd, oldState)

	// A kill from outside must not leave the terminal raw. Keyboard Ctrl-C
	// is forwarded through the pty and never lands here.
	killed := make(chan os.Signal, 1)
	signal.Notify(killed, syscall.SIGTERM)
	defer signal.Stop(killed)
	go func() {
		<-killed
		term.Restore(stdinFd, oldState)
		os.Exit(1)
	}()

	go func() { _, _ = io.Copy(ptmx, os.Stdin) }()
	// Reading the pty after the child exits returns EIO; the Wait below
	// carries the real outcome.
	_, _ = io.Copy(os.Stdout, ptmx)

	return cmd.Wait()
}
