// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// The package also hosts FakeExec, a scripted stand-in for subprocess
// execution built on the helper-process pattern. Reconciliation tests use it
// to assert exactly which commands a run would have issued without touching
// the host.
package testutil
