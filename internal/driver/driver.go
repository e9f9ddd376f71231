// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"watchdogctl/internal/config"
	"watchdogctl/internal/hoststate"
	"watchdogctl/internal/run"
)

// Provisioner makes the configured kernel module available. Construct with
// New; the zero value is not usable.
type Provisioner struct {
	cfg     config.DriverSection
	runner  *run.Runner
	workDir string

	// moduleLoaded answers whether the module is in the kernel already.
	// Replaced in tests.
	moduleLoaded func(name string) (bool, error)
}

// New creates a Provisioner for the given driver configuration. Acquired
// sources are materialized at the configured build path, falling back to a
// directory under the user cache, and reused across runs.
func New(cfg config.DriverSection, r *run.Runner) *Provisioner {
	cache, err := os.UserCacheDir()
	if err != nil {
		cache = os.TempDir()
	}
	return &Provisioner{
		cfg:          cfg,
		runner:       r,
		workDir:      filepath.Join(cache, "watchdogctl", "driver"),
		moduleLoaded: hoststate.ModuleLoaded,
	}
}

// Ensure makes the kernel module available, working down the ladder until
// something sticks: already loaded, plain modprobe, then source acquisition
// and build. The returned error is advisory; callers treat it as a warning
// because the application runs degraded without the camera.
func (p *Provisioner) Ensure(ctx context.Context) error {
	if p.cfg.Module == "" {
		slog.Debug("no kernel module configured, skipping driver provisioning")
		return nil
	}

	loaded, err := p.moduleLoaded(p.cfg.Module)
	if err != nil {
		return fmt.Errorf("check module %s: %w", p.cfg.Module, err)
	}
	if loaded {
		slog.Info("kernel module already loaded", "module", p.cfg.Module)
		return nil
	}

	// The module may be installed from a previous run and merely unloaded
	// after a reboot.
	if err := p.runner.Sudo().Quiet(ctx, "modprobe", p.cfg.Module); err == nil {
		slog.Info("kernel module loaded", "module", p.cfg.Module)
		return nil
	}
	slog.Debug("module not installed, acquiring sources", "module", p.cfg.Module)

	build, tier, err := p.acquireSource(ctx)
	if err != nil {
		return err
	}
	srcDir, err := sourceRoot(build)
	if err != nil {
		return err
	}
	slog.Info("building kernel module", "module", p.cfg.Module, "source", tier, "dir", srcDir)
	if err := p.buildAndInstall(ctx, srcDir); err != nil {
		return err
	}
	if err := p.runner.Sudo().Quiet(ctx, "modprobe", p.cfg.Module); err != nil {
		return fmt.Errorf("load module %s after install: %w", p.cfg.Module, err)
	}
	slog.Info("kernel module built and loaded", "module", p.cfg.Module, "source", tier)
	return nil
}

// acquireSource materializes the module sources at the build path and
// reports which tier supplied them. A populated build path is reused as-is;
// the lower tiers only ever run to create it, so deleting it moves the next
// run down to the first tier still present on disk.
func (p *Provisioner) acquireSource(ctx context.Context) (string, string, error) {
	build := p.buildPath()
	if populatedDir(build) {
		return build, "build-dir", nil
	}
	if dirExists(p.cfg.VendorDir) {
		if err := copyTree(p.cfg.VendorDir, build); err != nil {
			return "", "", fmt.Errorf("copy vendored sources to %s: %w", build, err)
		}
		return build, "vendor-dir", nil
	}
	if fileExists(p.cfg.VendorArchive) {
		if err := extractArchive(p.cfg.VendorArchive, build); err != nil {
			return "", "", fmt.Errorf("extract %s: %w", p.cfg.VendorArchive, err)
		}
		return build, "vendor-archive", nil
	}
	if p.cfg.Repo != "" {
		if err := p.fetchRepo(ctx, build); err != nil {
			return "", "", err
		}
		return build, "git", nil
	}
	return "", "", fmt.Errorf("no source for module %s: no build dir, vendor dir, archive, or repository configured", p.cfg.Module)
}

// buildPath picks where the source tree lives. The configured location wins
// when it exists or can be created; otherwise the tree goes under the user
// cache so an unprivileged run still has somewhere to build.
func (p *Provisioner) buildPath() string {
	if p.cfg.BuildDir != "" {
		if dirExists(p.cfg.BuildDir) || os.MkdirAll(p.cfg.BuildDir, 0o755) == nil {
			return p.cfg.BuildDir
		}
		slog.Debug("configured build dir not writable, using cache instead", "dir", p.cfg.BuildDir)
	}
	return filepath.Join(p.workDir, p.cfg.Module+"-build")
}

// buildAndInstall runs the module's make targets in dir. Build output
// streams to the operator; kernel module compiles are slow on the device.
func (p *Provisioner) buildAndInstall(ctx context.Context, dir string) error {
	build := p.runner.WithDir(dir)
	if err := build.Run(ctx, "make"); err != nil {
		return fmt.Errorf("build module in %s: %w", dir, err)
	}
	install := build.Sudo()
	if err := install.Run(ctx, "make", "install"); err != nil {
		return fmt.Errorf("install module from %s: %w", dir, err)
	}
	if err := install.Quiet(ctx, "depmod", "-a"); err != nil {
		return fmt.Errorf("refresh module dependency map: %w", err)
	}
	return nil
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// populatedDir distinguishes a materialized source tree from a directory
// that merely exists, such as a freshly created empty build path.
func populatedDir(path string) bool {
	if path == "" {
		return false
	}
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
