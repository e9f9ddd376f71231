// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"watchdogctl/internal/config"
	"watchdogctl/internal/engine"
	"watchdogctl/internal/hoststate"
	"watchdogctl/internal/remote"
	"watchdogctl/internal/run"
	"watchdogctl/internal/supervise"

	"github.com/spf13/cobra"
)

var (
	// statusSSH additionally verifies remote access with a real login
	statusSSH bool

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the deployment state of the device",
		Long: `Show the deployment state of the device.

Reports the container engine, the container state, the published ports,
and whether the application process is running. With --ssh it also logs
in over SSH and runs a command, verifying remote access end to end.

Status never changes anything. It exits non-zero only when the engine is
unreachable or a requested --ssh verification fails.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
)

func init() {
	statusCmd.Flags().BoolVar(&statusSSH, "ssh", false, "log in over SSH to verify remote access end to end")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Get()
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, TitleStyle.Render("Watchdog deployment"))
	fmt.Fprintln(w)

	if hostname, err := os.Hostname(); err == nil {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Device"), hostname)
	}
	if verbose {
		cfgPath := config.ConfigFilePath()
		if cfgPath == "" {
			cfgPath = "(built-in defaults)"
		}
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config"), VerboseHighlightStyle.Render(cfgPath))
	}

	eng, err := engine.Detect(ctx, cfg.Engine.Binary, run.New())
	if err != nil {
		renderGuide(err)
		return err
	}
	engineLine := eng.Binary()
	if eng.Sudoed() {
		engineLine += " (via sudo)"
	}
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Engine"), SuccessStyle.Render(engineLine))

	name := cfg.Container.Name
	running, err := eng.Running(ctx, name)
	if err != nil {
		return err
	}
	exists := running
	if !running {
		if exists, err = eng.Exists(ctx, name); err != nil {
			return err
		}
	}

	switch {
	case running:
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Container"), SuccessStyle.Render(fmt.Sprintf("%s running", name)))
	case exists:
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Container"), WarningStyle.Render(fmt.Sprintf("%s stopped", name)))
	default:
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Container"), WarningStyle.Render(fmt.Sprintf("%s absent", name)))
	}

	if exists {
		renderPorts(ctx, w, eng, cfg, name)
	}

	appRunning := false
	if running {
		appRunning = supervise.Running(ctx, eng, name, cfg.Supervisor.Pattern)
		if appRunning {
			fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Application"), SuccessStyle.Render("running"))
		} else {
			fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Application"), WarningStyle.Render("not running"))
		}
	}

	if statusSSH {
		if err := verifySSH(ctx, w, eng, cfg, running); err != nil {
			fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("SSH"), ErrorStyle.Render(err.Error()))
			return &ExitError{Code: 1}
		}
	}

	if !running || !appRunning {
		fmt.Fprintf(w, "\nRun %s to converge the device.\n", CmdStyle.Render("watchdogctl bootstrap"))
	}
	return nil
}

// renderPorts lists the published ports the deployment depends on. A probe
// failure is reported inline rather than aborting the whole status.
func renderPorts(ctx context.Context, w io.Writer, eng *engine.Engine, cfg *config.Config, name config.ContainerName) {
	ports := []struct {
		label string
		port  config.Port
	}{
		{"app", cfg.Container.AppContainerPort},
		{"ssh", cfg.Container.SSHContainerPort},
	}
	for _, p := range ports {
		hostPort, mapped, err := eng.BoundHostPort(ctx, name, engine.NetworkPort(p.port))
		label := CmdStyle.Render(fmt.Sprintf("Port (%s)", p.label))
		switch {
		case err != nil:
			fmt.Fprintf(w, "%s: %s\n", label, WarningStyle.Render("probe failed"))
		case mapped:
			fmt.Fprintf(w, "%s: %s\n", label, SuccessStyle.Render(fmt.Sprintf("%d -> %d", hostPort, p.port)))
		default:
			fmt.Fprintf(w, "%s: %s\n", label, WarningStyle.Render("not published"))
		}
	}
}

// verifySSH performs a real password login through the published port and
// runs a command in the session.
func verifySSH(ctx context.Context, w io.Writer, eng *engine.Engine, cfg *config.Config, running bool) error {
	if !running {
		return fmt.Errorf("container %s is not running", cfg.Container.Name)
	}
	hostPort, mapped, err := eng.BoundHostPort(ctx, cfg.Container.Name, engine.NetworkPort(cfg.Container.SSHContainerPort))
	if err != nil {
		return err
	}
	if !mapped {
		return fmt.Errorf("container port %d is not published", cfg.Container.SSHContainerPort)
	}

	user := cfg.Remote.User
	if user == "" {
		host, err := hoststate.InvokingUser()
		if err != nil {
			return fmt.Errorf("resolve invoking user: %w", err)
		}
		user = host.Name
	}
	pass := cfg.Remote.Password
	if pass == "" {
		prompt := terminalPrompt()
		if prompt == nil {
			return fmt.Errorf("no password configured and no terminal to prompt on")
		}
		if pass, err = prompt(user); err != nil {
			return err
		}
	}

	uid, err := remote.Probe(ctx, fmt.Sprintf("127.0.0.1:%d", hostPort), user, pass)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("SSH"), SuccessStyle.Render(fmt.Sprintf("login as %s ok (uid %s)", user, uid)))
	return nil
}
