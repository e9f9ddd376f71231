// SPDX-License-Identifier: MPL-2.0

// Package bootstrap sequences the reconciliation steps behind the
// watchdogctl bootstrap command: network join, host packages, the camera
// driver, the application container and its dependencies, remote access,
// and the application relaunch. Each step is idempotent, so the command
// can be re-run after a failure or a config change and only the drifted
// pieces move. A cross-process file lock keeps two runs from interleaving
// their check-then-act steps.
package bootstrap
