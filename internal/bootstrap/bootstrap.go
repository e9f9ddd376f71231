// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"watchdogctl/internal/config"
	"watchdogctl/internal/deps"
	"watchdogctl/internal/driver"
	"watchdogctl/internal/engine"
	"watchdogctl/internal/hoststate"
	"watchdogctl/internal/netjoin"
	"watchdogctl/internal/remote"
	"watchdogctl/internal/run"
	"watchdogctl/internal/supervise"
)

// Container-side locations for the python environment. The config's Deps
// paths describe the host filesystem; inside the container the venv and the
// wheel cache mount live at fixed places.
const (
	containerVenvPath  = "/opt/venv"
	containerWheelPath = "/opt/wheels"
)

type (
	// Severity decides what a step failure does to the rest of the run.
	Severity int

	// StepStatus is the recorded outcome of one step.
	StepStatus string

	// Step is one unit of the bootstrap plan. Skip is consulted right
	// before Run, so it sees the state earlier steps left behind.
	Step struct {
		Name     string
		Severity Severity
		Skip     func() (reason string, skip bool)
		Run      func(ctx context.Context) error
	}

	// StepResult records how one step went.
	StepResult struct {
		Name   string
		Status StepStatus
		// Reason explains a skip.
		Reason string
		// Err is set for warned and failed steps.
		Err error
	}

	// Summary lists the per-step outcomes of a bootstrap run. Steps after
	// a fatal failure do not appear; they never ran.
	Summary struct {
		Results []StepResult
	}

	// Options tune a bootstrap run.
	Options struct {
		// Production skips the development-only steps: the camera driver
		// and remote access.
		Production bool
		// Prompt asks the operator for a password when the config does
		// not carry one. Nil means passwords must come from the config.
		Prompt remote.PromptFunc
	}

	// Orchestrator executes the bootstrap plan against the host and its
	// container engine. Construct with New.
	Orchestrator struct {
		cfg        *config.Config
		runner     *run.Runner
		prompt     remote.PromptFunc
		production bool

		// probeAddr is dialed to classify the run online or offline.
		probeAddr string
		// lockPath overrides the run lock location; empty means the
		// well-known path.
		lockPath string

		// offline is settled by the connectivity step.
		offline bool
		// eng is settled by the engine detection step.
		eng *engine.Engine
	}
)

const (
	// SeverityFatal stops the run when the step fails.
	SeverityFatal Severity = iota
	// SeverityWarn records the failure and keeps going.
	SeverityWarn
)

const (
	// StatusOK means the step ran and succeeded.
	StatusOK StepStatus = "ok"
	// StatusSkipped means the step did not apply to this run.
	StatusSkipped StepStatus = "skipped"
	// StatusWarned means the step failed without stopping the run.
	StatusWarned StepStatus = "warned"
	// StatusFailed means the step failed and stopped the run.
	StatusFailed StepStatus = "failed"
)

// New assembles an Orchestrator over the given config and host runner.
func New(cfg *config.Config, r *run.Runner, opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		runner:     r,
		prompt:     opts.Prompt,
		production: opts.Production,
		probeAddr:  hoststate.DefaultProbeAddr,
	}
}

// Run executes the bootstrap plan under the cross-process run lock. The
// returned summary lists every step that ran, including the failing one;
// the error is the fatal failure that stopped the run, nil when the run
// completed. Warned steps surface in the summary only.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	lock, err := o.acquireLock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	summary := &Summary{}
	for _, step := range o.plan() {
		res := o.runStep(ctx, step)
		summary.Results = append(summary.Results, res)
		if res.Status == StatusFailed {
			return summary, fmt.Errorf("bootstrap step %q: %w", step.Name, res.Err)
		}
	}
	slog.Info("bootstrap complete", "steps", len(summary.Results))
	return summary, nil
}

func (o *Orchestrator) acquireLock() (*runLock, error) {
	if o.lockPath != "" {
		return acquireRunLockAt(o.lockPath)
	}
	return acquireRunLock()
}

// runStep evaluates the skip condition, runs the step, and classifies the
// outcome by the step's severity.
func (o *Orchestrator) runStep(ctx context.Context, step Step) StepResult {
	if step.Skip != nil {
		if reason, skip := step.Skip(); skip {
			slog.Info("skipping step", "step", step.Name, "reason", reason)
			return StepResult{Name: step.Name, Status: StatusSkipped, Reason: reason}
		}
	}
	slog.Info("running step", "step", step.Name)
	err := step.Run(ctx)
	if err == nil {
		return StepResult{Name: step.Name, Status: StatusOK}
	}
	if step.Severity == SeverityWarn {
		slog.Warn("step failed, continuing", "step", step.Name, "error", err)
		return StepResult{Name: step.Name, Status: StatusWarned, Err: err}
	}
	slog.Error("step failed", "step", step.Name, "error", err)
	return StepResult{Name: step.Name, Status: StatusFailed, Err: err}
}

// plan lays out the run in dependency order: the network before anything
// that downloads, host packages before the driver build that needs the
// toolchain, the container before anything that exec's into it.
func (o *Orchestrator) plan() []Step {
	cfg := o.cfg
	return []Step{
		{
			Name:     "wifi",
			Severity: SeverityWarn,
			Skip: func() (string, bool) {
				if cfg.Wifi.SSID == "" {
					return "no wifi network configured", true
				}
				return "", false
			},
			Run: func(ctx context.Context) error {
				return netjoin.Join(ctx, o.runner, cfg.Wifi)
			},
		},
		{
			Name:     "hostname",
			Severity: SeverityWarn,
			Skip: func() (string, bool) {
				if cfg.Hostname == "" {
					return "no hostname configured", true
				}
				return "", false
			},
			Run: func(ctx context.Context) error {
				changed, err := hoststate.EnsureHostname(ctx, o.runner, cfg.Hostname)
				if err != nil {
					return err
				}
				if changed {
					slog.Info("hostname applied", "hostname", cfg.Hostname)
				}
				return nil
			},
		},
		{
			// After the wifi join, so a connection it just brought up counts.
			Name:     "connectivity",
			Severity: SeverityWarn,
			Run: func(ctx context.Context) error {
				if cfg.Deps.Offline {
					o.offline = true
					slog.Info("offline forced by configuration")
					return nil
				}
				o.offline = !hoststate.Online(ctx, o.probeAddr)
				slog.Info("connectivity probed", "addr", o.probeAddr, "online", !o.offline)
				return nil
			},
		},
		{
			Name:     "host packages",
			Severity: SeverityFatal,
			Skip:     o.skipApt,
			Run: func(ctx context.Context) error {
				return deps.AptInstall(ctx, o.runner, cfg.Deps.AptPackages, o.offline)
			},
		},
		{
			Name:     "host python deps",
			Severity: SeverityFatal,
			Skip: func() (string, bool) {
				if cfg.Deps.Requirements == "" {
					return "no requirements file configured", true
				}
				return "", false
			},
			Run: func(ctx context.Context) error {
				return deps.PipInstall(ctx, o.runner, o.hostPipSpec(), o.offline)
			},
		},
		{
			Name:     "camera driver",
			Severity: SeverityWarn,
			Skip:     o.skipInProduction,
			Run: func(ctx context.Context) error {
				return driver.New(cfg.Driver, o.runner).Ensure(ctx)
			},
		},
		{
			Name:     "container engine",
			Severity: SeverityFatal,
			Run: func(ctx context.Context) error {
				eng, err := engine.Detect(ctx, cfg.Engine.Binary, o.runner)
				if err != nil {
					return err
				}
				o.eng = eng
				return nil
			},
		},
		{
			Name:     "container",
			Severity: SeverityFatal,
			Run: func(ctx context.Context) error {
				outcome, err := o.eng.EnsureRunning(ctx, o.containerSpec())
				if err != nil {
					return err
				}
				slog.Info("container reconciled", "name", cfg.Container.Name, "outcome", outcome)
				return nil
			},
		},
		{
			Name:     "container packages",
			Severity: SeverityFatal,
			Skip:     o.skipApt,
			Run: func(ctx context.Context) error {
				return deps.ContainerAptInstall(ctx, o.eng, cfg.Container.Name, cfg.Deps.AptPackages, o.offline)
			},
		},
		{
			Name:     "container python deps",
			Severity: SeverityFatal,
			Skip: func() (string, bool) {
				if cfg.Deps.Requirements == "" {
					return "no requirements file configured", true
				}
				if _, ok := o.containerPipSpec(); !ok {
					return "requirements file outside the app directory", true
				}
				return "", false
			},
			Run: func(ctx context.Context) error {
				spec, _ := o.containerPipSpec()
				return deps.ContainerPipInstall(ctx, o.eng, cfg.Container.Name, spec, o.offline)
			},
		},
		{
			Name:     "remote access",
			Severity: SeverityFatal,
			Skip:     o.skipInProduction,
			Run: func(ctx context.Context) error {
				prov := remote.New(o.eng, cfg.Remote, o.prompt)
				return prov.Ensure(ctx, cfg.Container.Name, engine.NetworkPort(cfg.Container.SSHContainerPort))
			},
		},
		{
			Name:     "application",
			Severity: SeverityWarn,
			Run: func(ctx context.Context) error {
				sup := cfg.Supervisor
				if sup.Workdir == "" {
					sup.Workdir = cfg.Container.AppMount
				}
				return supervise.Restart(ctx, o.eng, cfg.Container.Name, sup)
			},
		},
	}
}

func (o *Orchestrator) skipApt() (string, bool) {
	if o.cfg.Deps.SkipApt {
		return "apt disabled by configuration", true
	}
	return "", false
}

func (o *Orchestrator) skipInProduction() (string, bool) {
	if o.production {
		return "development-only step", true
	}
	return "", false
}

func (o *Orchestrator) hostPipSpec() deps.PipSpec {
	d := o.cfg.Deps
	return deps.PipSpec{Requirements: d.Requirements, Venv: d.Venv, WheelCache: d.WheelCache}
}

// containerPipSpec maps the python reconciliation into the container: the
// requirements file through the app mount, the venv and wheel cache at
// their container-side locations. The second return is false when the
// requirements file has no path inside the container.
func (o *Orchestrator) containerPipSpec() (deps.PipSpec, bool) {
	req, ok := o.containerRequirements()
	if !ok {
		return deps.PipSpec{}, false
	}
	spec := deps.PipSpec{Requirements: req, Venv: containerVenvPath}
	if o.cfg.Deps.WheelCache != "" {
		spec.WheelCache = containerWheelPath
	}
	return spec, true
}

// containerRequirements rebases the host requirements path onto the app
// mount. A requirements file outside the app directory is not visible in
// the container.
func (o *Orchestrator) containerRequirements() (string, bool) {
	c := o.cfg.Container
	req := o.cfg.Deps.Requirements
	if req == "" || c.AppDir == "" || c.AppMount == "" {
		return "", false
	}
	rel, err := filepath.Rel(c.AppDir, req)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return path.Join(c.AppMount, filepath.ToSlash(rel)), true
}

// containerSpec assembles the creation spec from the config. Devices are
// re-enumerated on every run, but the engine only consults the spec at
// creation; a camera plugged in later needs a container recreate.
func (o *Orchestrator) containerSpec() engine.ContainerSpec {
	c := o.cfg.Container
	spec := engine.ContainerSpec{
		Name:          c.Name,
		Image:         c.Image,
		RestartPolicy: c.RestartPolicy,
		Ports: []engine.PortMapping{
			{Host: engine.NetworkPort(c.AppHostPort), Container: engine.NetworkPort(c.AppContainerPort)},
			{Host: engine.NetworkPort(c.SSHHostPort), Container: engine.NetworkPort(c.SSHContainerPort)},
		},
		Devices: o.deviceMappings(),
		// The container idles; the application is exec'd in afterwards.
		Command: []string{"sleep", "infinity"},
	}
	if c.AppDir != "" && c.AppMount != "" {
		spec.Mounts = append(spec.Mounts, engine.Mount{Source: c.AppDir, Target: c.AppMount})
	}
	if o.cfg.Deps.WheelCache != "" {
		spec.Mounts = append(spec.Mounts, engine.Mount{Source: o.cfg.Deps.WheelCache, Target: containerWheelPath})
	}
	return spec
}

// deviceMappings expands the device glob. An empty result only logs; the
// container is still useful for everything but capture.
func (o *Orchestrator) deviceMappings() []engine.DeviceMapping {
	glob := o.cfg.Container.DeviceGlob
	if glob == "" {
		return nil
	}
	nodes, err := hoststate.Devices(glob)
	if err != nil {
		slog.Warn("device enumeration failed", "glob", glob, "error", err)
		return nil
	}
	if len(nodes) == 0 {
		slog.Warn("no device nodes matched, container gets none", "glob", glob)
		return nil
	}
	mappings := make([]engine.DeviceMapping, 0, len(nodes))
	for _, n := range nodes {
		mappings = append(mappings, engine.DeviceMapping{Source: n, Target: n})
	}
	return mappings
}

// Failed returns the step that stopped the run, nil when it completed.
func (s *Summary) Failed() *StepResult {
	for i := range s.Results {
		if s.Results[i].Status == StatusFailed {
			return &s.Results[i]
		}
	}
	return nil
}

// Warnings returns the steps that failed without stopping the run.
func (s *Summary) Warnings() []StepResult {
	var warned []StepResult
	for _, r := range s.Results {
		if r.Status == StatusWarned {
			warned = append(warned, r)
		}
	}
	return warned
}
