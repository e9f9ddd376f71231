// SPDX-License-Identifier: MPL-2.0

// Package supervise restarts the application process inside the container.
// Restart is kill-then-relaunch: any process matching the configured
// pattern is stopped, then the launch command starts detached so it
// outlives the bootstrap. Nothing here tracks the process afterwards; the
// container's restart policy owns long-term supervision.
package supervise
