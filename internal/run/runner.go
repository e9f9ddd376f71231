// SPDX-License-Identifier: MPL-2.0

package run

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type (
	// ExecCommandFunc creates an exec.Cmd for the given command and arguments.
	// It is typically exec.CommandContext, but can be replaced for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// LookPathFunc resolves a binary name to an absolute path.
	// It is typically exec.LookPath, but can be replaced for testing.
	LookPathFunc func(name string) (string, error)

	// Runner executes host commands. The zero value is not usable; construct
	// with New. Derived runners share the exec seam of their parent, so a test
	// that injects a fake into one Runner sees every privileged and
	// environment-adjusted variant derived from it.
	Runner struct {
		execCommand ExecCommandFunc
		lookPath    LookPathFunc
		sudo        bool
		dir         string
		env         map[string]string
	}

	// Option configures a Runner.
	Option func(*Runner)

	// CommandError reports a failed command together with its combined
	// output, so callers can log or surface what the tool printed.
	CommandError struct {
		Name   string
		Args   []string
		Output string
		Err    error
	}
)

// Error implements the error interface for CommandError.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s %v failed: %v", e.Name, e.Args, e.Err)
}

// Unwrap returns the underlying execution error.
func (e *CommandError) Unwrap() error { return e.Err }

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(r *Runner) {
		r.execCommand = fn
	}
}

// WithLookPath sets a custom binary lookup function for testing.
func WithLookPath(fn LookPathFunc) Option {
	return func(r *Runner) {
		r.lookPath = fn
	}
}

// New creates a Runner that executes commands directly.
func New(opts ...Option) *Runner {
	r := &Runner{
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sudo returns a derived Runner that prepends "sudo -n" to every command.
func (r *Runner) Sudo() *Runner {
	if r.sudo {
		return r
	}
	derived := *r
	derived.sudo = true
	return &derived
}

// WithDir returns a derived Runner whose commands run in the given working
// directory.
func (r *Runner) WithDir(dir string) *Runner {
	derived := *r
	derived.dir = dir
	return &derived
}

// WithEnv returns a derived Runner with an environment variable override
// applied to every command it creates.
func (r *Runner) WithEnv(key, value string) *Runner {
	derived := *r
	derived.env = make(map[string]string, len(r.env)+1)
	for k, v := range r.env {
		derived.env[k] = v
	}
	derived.env[key] = value
	return &derived
}

// Sudoed reports whether this Runner prefixes commands with sudo.
func (r *Runner) Sudoed() bool { return r.sudo }

// LookPath resolves a binary name to an absolute path.
func (r *Runner) LookPath(name string) (string, error) {
	return r.lookPath(name)
}

// Command creates an exec.Cmd with the sudo prefix and environment overrides
// applied. Useful when the caller needs to wire stdin/stdout itself (the
// interactive shell attach does this).
func (r *Runner) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	if r.sudo {
		args = append([]string{"-n", name}, args...)
		name = "sudo"
	}
	cmd := r.execCommand(ctx, name, args...)
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		// exec.Cmd.Env being nil means "inherit everything", but once set to
		// a non-nil slice, only the listed vars are passed to the child.
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		for k, v := range r.env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	return cmd
}

// Output executes a command and returns its combined output with surrounding
// whitespace trimmed. On failure the returned error is a *CommandError
// carrying the output.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := r.Command(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &CommandError{Name: name, Args: args, Output: strings.TrimSpace(string(out)), Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// Run executes a command with stdout and stderr inherited from the process,
// so long-running tool output (apt, pip, make) streams to the operator.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	cmd := r.Command(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &CommandError{Name: name, Args: args, Err: err}
	}
	return nil
}

// Quiet executes a command discarding its output on success. On failure the
// returned *CommandError carries the combined output for diagnostics.
func (r *Runner) Quiet(ctx context.Context, name string, args ...string) error {
	_, err := r.Output(ctx, name, args...)
	return err
}

// Detach starts a command without waiting for it to finish and releases the
// process handle. The child outlives this process.
func (r *Runner) Detach(ctx context.Context, name string, args ...string) error {
	cmd := r.Command(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return &CommandError{Name: name, Args: args, Err: err}
	}
	return cmd.Process.Release()
}
