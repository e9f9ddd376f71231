// SPDX-License-Identifier: MPL-2.0

package run

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"watchdogctl/internal/testutil"
)

// TestHelperProcess is invoked by FakeExec commands, never directly.
func TestHelperProcess(t *testing.T) { testutil.RunHelperProcess() }

func TestRunnerOutput(t *testing.T) {
	fake := testutil.NewFakeExec(&testutil.FakeRule{Match: "uname", Stdout: "Linux\n"})
	r := New(WithExecCommand(fake.CommandFunc(t)))

	got, err := r.Output(context.Background(), "uname", "-s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Linux" {
		t.Errorf("expected trimmed output %q, got %q", "Linux", got)
	}
	fake.AssertRan(t, "uname -s")
}

func TestRunnerOutputFailure(t *testing.T) {
	fake := testutil.NewFakeExec(&testutil.FakeRule{Match: "modprobe", Stdout: "module not found", ExitCode: 1})
	r := New(WithExecCommand(fake.CommandFunc(t)))

	_, err := r.Output(context.Background(), "modprobe", "v4l2loopback")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T", err)
	}
	if cmdErr.Name != "modprobe" {
		t.Errorf("expected command name %q, got %q", "modprobe", cmdErr.Name)
	}
	if !strings.Contains(cmdErr.Output, "module not found") {
		t.Errorf("expected captured output in error, got %q", cmdErr.Output)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("expected wrapped *exec.ExitError in chain, got %v", err)
	}
}

func TestRunnerSudoPrefix(t *testing.T) {
	fake := testutil.NewFakeExec()
	r := New(WithExecCommand(fake.CommandFunc(t)))

	if err := r.Sudo().Quiet(context.Background(), "docker", "ps"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.Invocations) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(fake.Invocations))
	}
	inv := fake.Invocations[0]
	if inv.Name != "sudo" {
		t.Errorf("expected command name %q, got %q", "sudo", inv.Name)
	}
	want := []string{"-n", "docker", "ps"}
	if len(inv.Args) != len(want) {
		t.Fatalf("expected args %v, got %v", want, inv.Args)
	}
	for i, arg := range want {
		if inv.Args[i] != arg {
			t.Errorf("arg %d: expected %q, got %q", i, arg, inv.Args[i])
		}
	}
}

func TestRunnerSudoDerivation(t *testing.T) {
	r := New()
	if r.Sudoed() {
		t.Error("base runner should not be sudoed")
	}

	sudoed := r.Sudo()
	if !sudoed.Sudoed() {
		t.Error("derived runner should be sudoed")
	}
	if r.Sudoed() {
		t.Error("deriving must not mutate the base runner")
	}
	if again := sudoed.Sudo(); again != sudoed {
		t.Error("Sudo on an already-sudoed runner should return itself")
	}
}

func TestRunnerWithEnv(t *testing.T) {
	fake := testutil.NewFakeExec()
	r := New(WithExecCommand(fake.CommandFunc(t))).WithEnv("DEBIAN_FRONTEND", "noninteractive")

	cmd := r.Command(context.Background(), "apt-get", "update")
	found := false
	for _, kv := range cmd.Env {
		if kv == "DEBIAN_FRONTEND=noninteractive" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected DEBIAN_FRONTEND override in cmd env, got %d vars", len(cmd.Env))
	}
	// The fake pre-seeds helper-process variables; the override must merge,
	// not replace them.
	helper := false
	for _, kv := range cmd.Env {
		if kv == "GO_WANT_HELPER_PROCESS=1" {
			helper = true
		}
	}
	if !helper {
		t.Error("env override clobbered the command's pre-set environment")
	}
}

func TestRunnerWithDir(t *testing.T) {
	fake := testutil.NewFakeExec()
	r := New(WithExecCommand(fake.CommandFunc(t)))

	cmd := r.WithDir("/usr/src/v4l2loopback").Command(context.Background(), "make")
	if cmd.Dir != "/usr/src/v4l2loopback" {
		t.Errorf("expected working directory to be set, got %q", cmd.Dir)
	}
	if base := r.Command(context.Background(), "make"); base.Dir != "" {
		t.Errorf("deriving must not set a directory on the base runner, got %q", base.Dir)
	}
}

func TestRunnerDetach(t *testing.T) {
	fake := testutil.NewFakeExec(&testutil.FakeRule{Match: "uvicorn", ExitCode: 1})
	r := New(WithExecCommand(fake.CommandFunc(t)))

	// Detach does not wait, so even a command that will exit non-zero
	// starts successfully.
	if err := r.Detach(context.Background(), "uvicorn", "main:app"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.AssertRan(t, "uvicorn main:app")
}

func TestRunnerLookPath(t *testing.T) {
	fake := testutil.NewFakeExec()
	r := New(WithLookPath(fake.LookPath("docker")))

	if _, err := r.LookPath("docker"); err == nil {
		t.Error("expected lookup failure for missing binary")
	}
	path, err := r.LookPath("nmcli")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/usr/bin/nmcli" {
		t.Errorf("expected resolved path %q, got %q", "/usr/bin/nmcli", path)
	}
}

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Name: "apt-get", Args: []string{"install", "-y", "build-essential"}, Err: errors.New("exit status 100")}
	msg := err.Error()
	if !strings.Contains(msg, "apt-get") || !strings.Contains(msg, "exit status 100") {
		t.Errorf("unexpected error message: %q", msg)
	}
}
