// SPDX-License-Identifier: MPL-2.0

// Package driver provisions the camera kernel module.
//
// The ladder is cheap-first: an already-loaded module is a no-op, a bare
// modprobe covers the installed-but-unloaded case, and only then are
// sources acquired from the first available tier (build dir, vendored
// tree, vendored archive, git clone) and built. Nothing here is fatal to
// the caller; a bench setup without the camera runs degraded.
package driver
