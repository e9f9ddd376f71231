// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"watchdogctl/internal/config"
	"watchdogctl/internal/issue"
	"watchdogctl/internal/run"
)

type (
	// Engine is a handle on a reachable container engine CLI. Construct with
	// Detect; the zero value is not usable.
	Engine struct {
		binary string
		runner *run.Runner
	}

	// ExecSpec shapes a command run inside the container.
	ExecSpec struct {
		// Workdir is the working directory inside the container.
		Workdir string
		// User is the account the command runs as; empty means the
		// container default (root).
		User string
		// Env sets environment variables for the command.
		Env map[string]string
		// TTY allocates an interactive terminal.
		TTY bool

		detach bool
	}
)

// New wraps an already-resolved engine CLI without probing. Most callers
// want Detect, which also settles whether sudo is needed.
func New(binary string, r *run.Runner) *Engine {
	return &Engine{binary: binary, runner: r}
}

// Detect locates the engine CLI and settles the privilege level for the rest
// of the run. It lists containers as an unprivileged probe first and retries
// under sudo; whichever works is remembered. A missing CLI and an
// unreachable daemon are both fatal.
func Detect(ctx context.Context, binary string, r *run.Runner) (*Engine, error) {
	path, err := r.LookPath(binary)
	if err != nil {
		return nil, engineNotFoundError(binary, err)
	}

	if err := r.Quiet(ctx, path, "ps", "--format", "{{.Names}}"); err == nil {
		slog.Debug("container engine reachable", "binary", path, "sudo", false)
		return &Engine{binary: path, runner: r}, nil
	}

	sudoed := r.Sudo()
	if err := sudoed.Quiet(ctx, path, "ps", "--format", "{{.Names}}"); err != nil {
		return nil, engineUnreachableError(path, err)
	}
	slog.Debug("container engine reachable", "binary", path, "sudo", true)
	return &Engine{binary: path, runner: sudoed}, nil
}

// Binary returns the resolved engine CLI path.
func (e *Engine) Binary() string { return e.binary }

// Sudoed reports whether engine commands run under sudo.
func (e *Engine) Sudoed() bool { return e.runner.Sudoed() }

// Command creates a host command invoking the engine CLI with the settled
// privilege level. The interactive shell attach wires its own stdio through
// this.
func (e *Engine) Command(ctx context.Context, args ...string) *exec.Cmd {
	return e.runner.Command(ctx, e.binary, args...)
}

// Exists reports whether a container with the given name exists, running
// or not.
func (e *Engine) Exists(ctx context.Context, name config.ContainerName) (bool, error) {
	out, err := e.runner.Output(ctx, e.binary, "ps", "-a", "--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("list containers: %w", err)
	}
	return containsLine(out, name.String()), nil
}

// Running reports whether the named container is currently running.
func (e *Engine) Running(ctx context.Context, name config.ContainerName) (bool, error) {
	out, err := e.runner.Output(ctx, e.binary, "ps", "--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("list running containers: %w", err)
	}
	return containsLine(out, name.String()), nil
}

// Pull downloads the image. Progress streams to the operator; a pull on a
// slow uplink can take minutes.
func (e *Engine) Pull(ctx context.Context, image config.ImageRef) error {
	slog.Info("pulling container image", "image", image)
	if err := e.runner.Run(ctx, e.binary, "pull", image.String()); err != nil {
		return pullImageError(image, err)
	}
	return nil
}

// Create validates the spec and creates the container. The container is not
// started; see Start.
func (e *Engine) Create(ctx context.Context, spec ContainerSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	slog.Info("creating container", "name", spec.Name, "image", spec.Image)
	if err := e.runner.Run(ctx, e.binary, spec.CreateArgs()...); err != nil {
		return createContainerError(filepath.Base(e.binary), spec, err)
	}
	return nil
}

// Start starts an existing container.
func (e *Engine) Start(ctx context.Context, name config.ContainerName) error {
	slog.Info("starting container", "name", name)
	if err := e.runner.Quiet(ctx, e.binary, "start", name.String()); err != nil {
		return fmt.Errorf("start container %s: %w", name, err)
	}
	return nil
}

// Args builds the exec argument list for a command inside the container.
// Environment variables are emitted in sorted key order so command lines
// are deterministic.
func (s ExecSpec) Args(name config.ContainerName, command ...string) []string {
	args := []string{"exec"}
	if s.detach {
		args = append(args, "-d")
	}
	if s.TTY {
		args = append(args, "-it")
	}
	if s.Workdir != "" {
		args = append(args, "-w", s.Workdir)
	}
	if s.User != "" {
		args = append(args, "-u", s.User)
	}
	for _, k := range slices.Sorted(maps.Keys(s.Env)) {
		args = append(args, "-e", k+"="+s.Env[k])
	}
	args = append(args, name.String())
	return append(args, command...)
}

// Exec runs a command inside the container and returns its combined output
// with surrounding whitespace trimmed.
func (e *Engine) Exec(ctx context.Context, name config.ContainerName, spec ExecSpec, command ...string) (string, error) {
	return e.runner.Output(ctx, e.binary, spec.Args(name, command...)...)
}

// ExecStreaming runs a command inside the container with output inherited,
// for long installs the operator should watch.
func (e *Engine) ExecStreaming(ctx context.Context, name config.ContainerName, spec ExecSpec, command ...string) error {
	return e.runner.Run(ctx, e.binary, spec.Args(name, command...)...)
}

// ExecDetached starts a command inside the container and returns without
// waiting. The engine runs the exec session in the background, so the
// process outlives this client.
func (e *Engine) ExecDetached(ctx context.Context, name config.ContainerName, spec ExecSpec, command ...string) error {
	spec.detach = true
	if err := e.runner.Quiet(ctx, e.binary, spec.Args(name, command...)...); err != nil {
		return fmt.Errorf("detached exec in %s: %w", name, err)
	}
	return nil
}

// ExecScript runs a shell script inside the container via sh -c. The script
// is syntax-checked on the host first; a malformed script fails fast instead
// of half-running in the container.
func (e *Engine) ExecScript(ctx context.Context, name config.ContainerName, spec ExecSpec, script string) (string, error) {
	if err := validateScript(script); err != nil {
		return "", err
	}
	return e.Exec(ctx, name, spec, "sh", "-c", script)
}

// ExecScriptStreaming is ExecScript with output inherited.
func (e *Engine) ExecScriptStreaming(ctx context.Context, name config.ContainerName, spec ExecSpec, script string) error {
	if err := validateScript(script); err != nil {
		return err
	}
	return e.ExecStreaming(ctx, name, spec, "sh", "-c", script)
}

// ExecScriptDetached starts a script inside the container without waiting.
func (e *Engine) ExecScriptDetached(ctx context.Context, name config.ContainerName, spec ExecSpec, script string) error {
	if err := validateScript(script); err != nil {
		return err
	}
	return e.ExecDetached(ctx, name, spec, "sh", "-c", script)
}

// BoundHostPort reports whether containerPort is published, and on which
// host port. The answer comes from the engine, not the config, so a
// container created before a config change reports what is actually bound.
func (e *Engine) BoundHostPort(ctx context.Context, name config.ContainerName, containerPort NetworkPort) (NetworkPort, bool, error) {
	out, err := e.runner.Output(ctx, e.binary, "port", name.String())
	if err != nil {
		return 0, false, fmt.Errorf("inspect port mappings of %s: %w", name, err)
	}
	return parsePortLines(out, containerPort)
}

// Quote returns s as a single shell word, safe to embed in a script run by
// ExecScript. NUL bytes cannot survive an exec and are stripped.
func Quote(s string) string {
	quoted, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		quoted, _ = syntax.Quote(strings.ReplaceAll(s, "\x00", ""), syntax.LangPOSIX)
	}
	return quoted
}

func validateScript(script string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "script"); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

func containsLine(out, want string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}

// parsePortLines scans "port" output of the form
//
//	22/tcp -> 0.0.0.0:2222
//	8080/tcp -> [::]:8080
//
// for the given container port and extracts the host side.
func parsePortLines(out string, containerPort NetworkPort) (NetworkPort, bool, error) {
	prefix := fmt.Sprintf("%d/", containerPort)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		_, addr, ok := strings.Cut(line, "->")
		if !ok {
			continue
		}
		idx := strings.LastIndex(addr, ":")
		if idx < 0 {
			continue
		}
		hostPort, err := strconv.ParseUint(strings.TrimSpace(addr[idx+1:]), 10, 16)
		if err != nil {
			return 0, false, fmt.Errorf("unparseable port mapping %q: %w", line, err)
		}
		return NetworkPort(hostPort), true, nil
	}
	return 0, false, nil
}

func engineNotFoundError(binary string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("locate container engine").
		WithResource(binary).
		WithSuggestion(fmt.Sprintf("Install %s, or point engine.binary at the CLI to use", binary)).
		WithIssue(issue.ContainerEngineNotFoundId).
		Wrap(cause).
		BuildError()
}

func engineUnreachableError(binary string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("reach container engine daemon").
		WithResource(binary).
		WithSuggestion("Check that the daemon is running: systemctl status docker").
		WithSuggestion("Verify the invoking user may use the engine, or allow passwordless sudo").
		WithIssue(issue.EngineUnreachableId).
		Wrap(cause).
		BuildError()
}

func pullImageError(image config.ImageRef, cause error) error {
	return issue.NewErrorContext().
		WithOperation("pull container image").
		WithResource(image.String()).
		WithSuggestion("Check network connectivity and the image reference spelling").
		WithIssue(issue.ImagePullFailedId).
		Wrap(cause).
		BuildError()
}

func createContainerError(binary string, spec ContainerSpec, cause error) error {
	ectx := issue.NewErrorContext().
		WithOperation("create container").
		WithResource(spec.Name.String()).
		WithIssue(issue.ContainerCreateFailedId).
		Wrap(cause)
	if len(spec.Ports) > 0 {
		hosts := make([]string, len(spec.Ports))
		for i, p := range spec.Ports {
			hosts[i] = strconv.Itoa(int(p.Host))
		}
		ectx = ectx.WithSuggestion("Check that host ports " + strings.Join(hosts, ", ") + " are free")
	}
	return ectx.
		WithSuggestion(fmt.Sprintf("Remove a conflicting leftover container: %s rm %s", binary, spec.Name)).
		BuildError()
}
