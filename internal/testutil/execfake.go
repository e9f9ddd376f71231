// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

type (
	// FakeExec simulates subprocess execution for reconciliation tests.
	// It records every invocation and answers each one from the first
	// matching rule, using the helper-process pattern to produce real
	// process exits and output.
	FakeExec struct {
		// Rules are consulted in order; the first rule whose Match substring
		// appears in the space-joined command line answers the invocation.
		// An unmatched invocation succeeds with no output.
		Rules []*FakeRule
		// Invocations records each command the code under test created.
		Invocations []FakeInvocation
	}

	// FakeRule scripts the response for matching command lines.
	FakeRule struct {
		// Match is a substring of the space-joined "name arg0 arg1 ..." line.
		Match string
		// Stdout is written to the command's stdout.
		Stdout string
		// ExitCode is the process exit code (0 = success).
		ExitCode int
		// Times limits how many invocations this rule answers (0 = unlimited).
		// Exhausted rules are skipped, so a sequence of rules with the same
		// Match can script state changes between runs.
		Times int

		used int
	}

	// FakeInvocation is a single recorded command.
	FakeInvocation struct {
		Name string
		Args []string
	}
)

// NewFakeExec creates a FakeExec answering with the given rules.
func NewFakeExec(rules ...*FakeRule) *FakeExec {
	return &FakeExec{Rules: rules}
}

// Line returns the invocation as a space-joined command line.
func (i FakeInvocation) Line() string {
	return strings.Join(append([]string{i.Name}, i.Args...), " ")
}

// CommandFunc returns a replacement for exec.CommandContext that records the
// invocation and runs the helper process with the matched rule's script.
func (f *FakeExec) CommandFunc(t *testing.T) func(ctx context.Context, name string, arg ...string) *exec.Cmd {
	t.Helper()
	return func(_ context.Context, name string, arg ...string) *exec.Cmd {
		inv := FakeInvocation{Name: name, Args: arg}
		f.Invocations = append(f.Invocations, inv)

		stdout, exitCode := "", 0
		for _, r := range f.Rules {
			if r.Times > 0 && r.used >= r.Times {
				continue
			}
			if strings.Contains(inv.Line(), r.Match) {
				r.used++
				stdout, exitCode = r.Stdout, r.ExitCode
				break
			}
		}

		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, arg...)
		//nolint:gosec // helper-process pattern, test-only
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", exitCode),
			"GO_HELPER_STDOUT="+stdout,
		)
		return cmd
	}
}

// LookPath returns a binary resolver that fails only for the listed names.
func (f *FakeExec) LookPath(missing ...string) func(name string) (string, error) {
	return func(name string) (string, error) {
		for _, m := range missing {
			if name == m {
				return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
			}
		}
		return "/usr/bin/" + name, nil
	}
}

// Lines returns every recorded invocation as a command line, in order.
func (f *FakeExec) Lines() []string {
	lines := make([]string, len(f.Invocations))
	for i, inv := range f.Invocations {
		lines[i] = inv.Line()
	}
	return lines
}

// Count returns how many recorded command lines contain the substring.
func (f *FakeExec) Count(sub string) int {
	n := 0
	for _, line := range f.Lines() {
		if strings.Contains(line, sub) {
			n++
		}
	}
	return n
}

// Reset clears recorded invocations but keeps the rules (and their use
// counts), so a second reconciliation run can be observed in isolation.
func (f *FakeExec) Reset() {
	f.Invocations = f.Invocations[:0]
}

// AssertRan verifies that some recorded command line contains the substring.
func (f *FakeExec) AssertRan(t *testing.T, sub string) {
	t.Helper()
	if f.Count(sub) == 0 {
		t.Errorf("expected a command containing %q, got:\n%s", sub, strings.Join(f.Lines(), "\n"))
	}
}

// AssertNotRan verifies that no recorded command line contains the substring.
func (f *FakeExec) AssertNotRan(t *testing.T, sub string) {
	t.Helper()
	if n := f.Count(sub); n > 0 {
		t.Errorf("expected no command containing %q, got %d:\n%s", sub, n, strings.Join(f.Lines(), "\n"))
	}
}

// RunHelperProcess implements the helper-process side of FakeExec. Each test
// package using the fake declares:
//
//	func TestHelperProcess(t *testing.T) { testutil.RunHelperProcess() }
func RunHelperProcess() {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode)
	}
	os.Exit(exitCode)
}
