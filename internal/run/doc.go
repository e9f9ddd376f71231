// SPDX-License-Identifier: MPL-2.0

// Package run provides the shared subprocess execution layer for every
// component that shells out to host tooling (apt, pip, modprobe, make,
// nmcli, the container engine binary).
//
// A Runner wraps exec.CommandContext behind an injectable ExecCommandFunc so
// reconciliation logic can be tested without touching the host. Privileged
// variants are derived with Sudo(), which prepends "sudo -n" so a missing
// sudoers entry fails immediately instead of hanging on a password prompt.
//
// Subprocesses run to completion: the bootstrap is sequential and applies no
// per-command timeouts. The context parameter exists for signal-triggered
// teardown of the whole run.
package run
