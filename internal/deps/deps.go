// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"watchdogctl/internal/issue"
	"watchdogctl/internal/run"
)

// PipSpec names the pieces of a pip reconciliation: the requirements file
// to satisfy, the venv owning the interpreter, and the wheel cache used for
// offline installs and the one-shot network fallback.
type PipSpec struct {
	Requirements string
	Venv         string
	WheelCache   string
}

// AptInstall reconciles the host package set. Offline runs skip apt
// entirely; an online failure is fatal because later steps assume the
// toolchain it installs.
func AptInstall(ctx context.Context, r *run.Runner, pkgs []string, offline bool) error {
	if len(pkgs) == 0 {
		slog.Debug("no apt packages configured")
		return nil
	}
	if offline {
		slog.Info("offline, skipping apt packages", "count", len(pkgs))
		return nil
	}

	sudo := r.Sudo()
	if err := sudo.Run(ctx, "apt-get", "update"); err != nil {
		return aptInstallError("refreshing the apt package index", err)
	}
	if err := sudo.Run(ctx, "apt-get", aptInstallArgs(pkgs)...); err != nil {
		return aptInstallError("installing apt packages", err)
	}
	slog.Info("apt packages installed", "count", len(pkgs))
	return nil
}

// PipInstall satisfies a requirements file inside a venv, creating the venv
// when missing. Offline installs draw from the wheel cache and never touch
// the network; online installs get exactly one fallback to the cache before
// the failure stands.
func PipInstall(ctx context.Context, r *run.Runner, spec PipSpec, offline bool) error {
	if spec.Requirements == "" {
		slog.Debug("no requirements file configured")
		return nil
	}
	pip, err := ensureVenv(ctx, r, spec.Venv)
	if err != nil {
		return err
	}

	if offline {
		if err := wheelCacheUsable(spec.WheelCache); err != nil {
			return err
		}
		if err := r.Run(ctx, pip, pipOfflineArgs(spec)...); err != nil {
			return fmt.Errorf("install python requirements from the wheel cache: %w", err)
		}
		slog.Info("python requirements installed from the wheel cache", "cache", spec.WheelCache)
		return nil
	}

	netErr := r.Run(ctx, pip, pipInstallArgs(spec)...)
	if netErr == nil {
		slog.Info("python requirements installed", "requirements", spec.Requirements)
		return nil
	}
	slog.Warn("pip install from the network failed, retrying from the wheel cache",
		"requirements", spec.Requirements, "error", netErr)
	if err := wheelCacheUsable(spec.WheelCache); err != nil {
		return fmt.Errorf("install python requirements: %w", netErr)
	}
	if err := r.Run(ctx, pip, pipOfflineArgs(spec)...); err != nil {
		return fmt.Errorf("install python requirements, network and wheel cache both failed: %w", err)
	}
	slog.Info("python requirements installed from the wheel cache", "cache", spec.WheelCache)
	return nil
}

// SeedWheels fills the wheel cache from the network so later offline runs
// can install without it.
func SeedWheels(ctx context.Context, r *run.Runner, spec PipSpec) error {
	if spec.Requirements == "" {
		return errors.New("no requirements file configured")
	}
	if spec.WheelCache == "" {
		return errors.New("no wheel cache configured")
	}
	if err := os.MkdirAll(spec.WheelCache, 0o755); err != nil {
		return fmt.Errorf("create wheel cache %s: %w", spec.WheelCache, err)
	}
	pip, err := ensureVenv(ctx, r, spec.Venv)
	if err != nil {
		return err
	}
	if err := r.Run(ctx, pip, pipDownloadArgs(spec)...); err != nil {
		return fmt.Errorf("download wheels to %s: %w", spec.WheelCache, err)
	}
	slog.Info("wheel cache seeded", "cache", spec.WheelCache, "requirements", spec.Requirements)
	return nil
}

// ensureVenv creates the venv when absent and returns the pip binary to
// use. An empty venv path falls back to the interpreter's own pip.
func ensureVenv(ctx context.Context, r *run.Runner, venv string) (string, error) {
	if venv == "" {
		return "pip3", nil
	}
	pip := filepath.Join(venv, "bin", "pip")
	if _, err := os.Stat(pip); err == nil {
		return pip, nil
	}
	slog.Info("creating virtualenv", "path", venv)
	if err := r.Run(ctx, "python3", "-m", "venv", venv); err != nil {
		return "", fmt.Errorf("create virtualenv %s: %w", venv, err)
	}
	return pip, nil
}

// wheelCacheUsable reports a fatal, actionable error when the wheel cache
// directory is missing or empty.
func wheelCacheUsable(cache string) error {
	if cache == "" {
		return wheelCacheMissingError(cache, errors.New("no wheel cache configured"))
	}
	entries, err := os.ReadDir(cache)
	if err != nil {
		return wheelCacheMissingError(cache, err)
	}
	if len(entries) == 0 {
		return wheelCacheMissingError(cache, fmt.Errorf("%s is empty", cache))
	}
	return nil
}

func aptInstallArgs(pkgs []string) []string {
	return append([]string{"install", "-y"}, pkgs...)
}

func pipInstallArgs(spec PipSpec) []string {
	return []string{"install", "-r", spec.Requirements}
}

func pipOfflineArgs(spec PipSpec) []string {
	return []string{"install", "--no-index", "--find-links", spec.WheelCache, "-r", spec.Requirements}
}

func pipDownloadArgs(spec PipSpec) []string {
	return []string{"download", "-d", spec.WheelCache, "-r", spec.Requirements}
}

func aptInstallError(op string, cause error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithSuggestion("Run `sudo apt-get update` by hand and read the mirror errors").
		WithSuggestion("Set WATCHDOG_SKIP_APT=1 if the packages are already present").
		WithIssue(issue.AptInstallFailedId).
		Wrap(cause).
		BuildError()
}

func wheelCacheMissingError(cache string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("installing python requirements offline").
		WithResource(cache).
		WithSuggestion("Seed the cache while online: `watchdogctl deps seed`").
		WithIssue(issue.WheelCacheMissingId).
		Wrap(cause).
		BuildError()
}
