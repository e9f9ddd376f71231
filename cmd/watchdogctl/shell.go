// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"watchdogctl/internal/config"
	"watchdogctl/internal/engine"
	"watchdogctl/internal/run"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// shellUser is the container account the shell runs as
	shellUser string

	shellCmd = &cobra.Command{
		Use:   "shell [command...]",
		Short: "Open a shell inside the watchdog container",
		Long: `Open a shell inside the watchdog container.

Without arguments this attaches an interactive login shell at the app
mount point. With arguments it runs that command instead, so scripts can
do one-shot work:

  watchdogctl shell                     Interactive shell
  watchdogctl shell tail -f app.log     Follow the application log
  watchdogctl shell --user pi           Shell as the provisioned account`,
		RunE: runShell,
	}
)

func init() {
	shellCmd.Flags().StringVar(&shellUser, "user", "", "container account to run as (default root)")
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	eng, err := engine.Detect(ctx, cfg.Engine.Binary, run.New())
	if err != nil {
		renderGuide(err)
		return err
	}
	name := cfg.Container.Name
	running, err := eng.Running(ctx, name)
	if err != nil {
		return err
	}
	if !running {
		fmt.Fprintf(os.Stderr, "%s Container %s is not running. Run %s first.\n",
			ErrorStyle.Render("✗"), name, CmdStyle.Render("watchdogctl bootstrap"))
		return &ExitError{Code: 1}
	}

	command := args
	if len(command) == 0 {
		command = []string{"bash", "-l"}
	}
	spec := engine.ExecSpec{
		Workdir: cfg.Container.AppMount,
		User:    shellUser,
		TTY:     term.IsTerminal(int(os.Stdin.Fd())),
	}

	// Piped stdin gets a plain streaming exec; only a real terminal is
	// worth a pty.
	if !spec.TTY {
		return shellExitCode(eng.ExecStreaming(ctx, name, spec, command...))
	}
	return shellExitCode(attachTerminal(eng.Command(ctx, spec.Args(name, command...)...)))
}

// shellExitCode propagates the inner command's exit code instead of wrapping
// it in an error message.
func shellExitCode(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return err
}
