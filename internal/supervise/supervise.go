// SPDX-License-Identifier: MPL-2.0

package supervise

import (
	"context"
	"fmt"
	"log/slog"

	"watchdogctl/internal/config"
	"watchdogctl/internal/engine"
)

// Restart stops any running application process and launches a fresh one
// detached. The kill is best-effort; pkill exits nonzero when nothing
// matches, which on a first boot is the normal case. The relaunch always
// runs, so a half-dead process never survives a bootstrap.
func Restart(ctx context.Context, eng *engine.Engine, name config.ContainerName, cfg config.SupervisorSection) error {
	if cfg.Launch == "" {
		slog.Debug("no launch command configured, leaving the application alone")
		return nil
	}

	if cfg.Pattern != "" {
		if _, err := eng.Exec(ctx, name, engine.ExecSpec{}, "pkill", "-f", cfg.Pattern); err != nil {
			slog.Info("no running application process to stop", "pattern", cfg.Pattern)
		} else {
			slog.Info("stopped running application process", "pattern", cfg.Pattern)
		}
	}

	spec := engine.ExecSpec{Workdir: cfg.Workdir}
	if err := eng.ExecScriptDetached(ctx, name, spec, cfg.Launch); err != nil {
		return fmt.Errorf("relaunch application in %s: %w", name, err)
	}
	slog.Info("application relaunched", "container", name, "command", cfg.Launch)
	return nil
}

// Running reports whether a process matching the supervisor pattern exists
// inside the container. An empty pattern matches nothing, and an exec
// failure counts as not running.
func Running(ctx context.Context, eng *engine.Engine, name config.ContainerName, pattern string) bool {
	if pattern == "" {
		return false
	}
	script := fmt.Sprintf("pgrep -f %s >/dev/null", engine.Quote(pattern))
	if _, err := eng.ExecScript(ctx, name, engine.ExecSpec{}, script); err != nil {
		// pgrep exits 1 when no process matches.
		return false
	}
	return true
}
