// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"log/slog"
)

// Outcome reports what EnsureRunning had to do.
type Outcome string

const (
	// OutcomeUnchanged means the container was already running.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeStarted means an existing stopped container was started.
	OutcomeStarted Outcome = "started"
	// OutcomeCreated means the container was pulled, created and started.
	OutcomeCreated Outcome = "created"
)

// EnsureRunning converges the container toward "exists and is running".
// Already running is a no-op. A stopped container is only started; ports,
// mounts and devices are fixed at creation, so nothing is re-applied to it.
// An absent container triggers pull, create, start in order, and a failure
// at any of those aborts the run. There is no retry; on a flaky uplink the
// operator reruns the bootstrap.
func (e *Engine) EnsureRunning(ctx context.Context, spec ContainerSpec) (Outcome, error) {
	running, err := e.Running(ctx, spec.Name)
	if err != nil {
		return "", err
	}
	if running {
		slog.Info("container already running", "name", spec.Name)
		return OutcomeUnchanged, nil
	}

	exists, err := e.Exists(ctx, spec.Name)
	if err != nil {
		return "", err
	}
	if exists {
		slog.Info("container exists but is stopped", "name", spec.Name)
		if err := e.Start(ctx, spec.Name); err != nil {
			return "", err
		}
		return OutcomeStarted, nil
	}

	// Validate before the pull so a bad spec fails without network traffic.
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if err := e.Pull(ctx, spec.Image); err != nil {
		return "", err
	}
	if err := e.Create(ctx, spec); err != nil {
		return "", err
	}
	if err := e.Start(ctx, spec.Name); err != nil {
		return "", err
	}
	return OutcomeCreated, nil
}
