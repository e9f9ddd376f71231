// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"watchdogctl/internal/config"
	"watchdogctl/internal/engine"
)

// ContainerAptInstall mirrors AptInstall inside the container, where exec
// already runs as root so no sudo prefix applies.
func ContainerAptInstall(ctx context.Context, eng *engine.Engine, name config.ContainerName, pkgs []string, offline bool) error {
	if len(pkgs) == 0 {
		slog.Debug("no container apt packages configured")
		return nil
	}
	if offline {
		slog.Info("offline, skipping container apt packages", "container", name, "count", len(pkgs))
		return nil
	}

	script := "apt-get update && apt-get install -y " + quoteJoin(pkgs)
	if err := eng.ExecScriptStreaming(ctx, name, aptExecSpec(), script); err != nil {
		return aptInstallError(fmt.Sprintf("installing apt packages in %s", name), err)
	}
	slog.Info("container apt packages installed", "container", name, "count", len(pkgs))
	return nil
}

// ContainerPipInstall mirrors PipInstall inside the container. Existence
// probes go through the container's shell since the paths live in its
// filesystem, not the host's.
func ContainerPipInstall(ctx context.Context, eng *engine.Engine, name config.ContainerName, spec PipSpec, offline bool) error {
	if spec.Requirements == "" {
		slog.Debug("no container requirements file configured")
		return nil
	}
	pip, err := ensureContainerVenv(ctx, eng, name, spec.Venv)
	if err != nil {
		return err
	}

	if offline {
		if err := containerWheelCacheUsable(ctx, eng, name, spec.WheelCache); err != nil {
			return err
		}
		if err := eng.ExecScriptStreaming(ctx, name, engine.ExecSpec{}, quoteJoin(append([]string{pip}, pipOfflineArgs(spec)...))); err != nil {
			return fmt.Errorf("install python requirements in %s from the wheel cache: %w", name, err)
		}
		slog.Info("container python requirements installed from the wheel cache", "container", name, "cache", spec.WheelCache)
		return nil
	}

	netErr := eng.ExecScriptStreaming(ctx, name, engine.ExecSpec{}, quoteJoin(append([]string{pip}, pipInstallArgs(spec)...)))
	if netErr == nil {
		slog.Info("container python requirements installed", "container", name, "requirements", spec.Requirements)
		return nil
	}
	slog.Warn("container pip install from the network failed, retrying from the wheel cache",
		"container", name, "error", netErr)
	if err := containerWheelCacheUsable(ctx, eng, name, spec.WheelCache); err != nil {
		return fmt.Errorf("install python requirements in %s: %w", name, netErr)
	}
	if err := eng.ExecScriptStreaming(ctx, name, engine.ExecSpec{}, quoteJoin(append([]string{pip}, pipOfflineArgs(spec)...))); err != nil {
		return fmt.Errorf("install python requirements in %s, network and wheel cache both failed: %w", name, err)
	}
	slog.Info("container python requirements installed from the wheel cache", "container", name, "cache", spec.WheelCache)
	return nil
}

// ensureContainerVenv creates the venv inside the container when absent and
// returns the pip binary to use there.
func ensureContainerVenv(ctx context.Context, eng *engine.Engine, name config.ContainerName, venv string) (string, error) {
	if venv == "" {
		return "pip3", nil
	}
	pip := path.Join(venv, "bin", "pip")
	script := fmt.Sprintf("test -x %s || python3 -m venv %s", engine.Quote(pip), engine.Quote(venv))
	if err := eng.ExecScriptStreaming(ctx, name, engine.ExecSpec{}, script); err != nil {
		return "", fmt.Errorf("create virtualenv %s in %s: %w", venv, name, err)
	}
	return pip, nil
}

// containerWheelCacheUsable probes the cache through the container's shell;
// the probe output stays captured so nothing prints on the happy path.
func containerWheelCacheUsable(ctx context.Context, eng *engine.Engine, name config.ContainerName, cache string) error {
	if cache == "" {
		return wheelCacheMissingError(cache, errors.New("no wheel cache configured"))
	}
	script := fmt.Sprintf(`[ -d %[1]s ] && [ -n "$(ls -A %[1]s)" ]`, engine.Quote(cache))
	if _, err := eng.ExecScript(ctx, name, engine.ExecSpec{}, script); err != nil {
		return wheelCacheMissingError(cache, fmt.Errorf("%s missing or empty in %s", cache, name))
	}
	return nil
}

// aptExecSpec keeps apt from prompting for tzdata and friends when exec'ing
// into a fresh Ubuntu image.
func aptExecSpec() engine.ExecSpec {
	return engine.ExecSpec{Env: map[string]string{"DEBIAN_FRONTEND": "noninteractive"}}
}

// quoteJoin renders argv as a single shell line with each word quoted.
func quoteJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = engine.Quote(w)
	}
	return strings.Join(quoted, " ")
}
