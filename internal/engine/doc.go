// SPDX-License-Identifier: MPL-2.0

// Package engine drives the container engine CLI (docker or podman).
//
// Detect settles the privilege level once per run: a plain probe first,
// then a sudo retry, and every later command reuses whichever worked.
// Verbs are split into pure argument builders and thin execution wrappers
// so tests can assert exact command lines without a daemon.
package engine
