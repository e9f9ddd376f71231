// SPDX-License-Identifier: MPL-2.0

// Package hoststate answers read-only questions about the device: whether a
// kernel module is loaded, which device nodes match a glob, who invoked the
// tool (sudo-aware), whether the network is reachable, and whether the
// hostname matches the configured override.
//
// Device enumeration is deliberately uncached; hardware comes and goes
// between runs, so every caller sees the current state.
package hoststate
