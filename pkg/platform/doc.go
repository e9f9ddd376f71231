// SPDX-License-Identifier: MPL-2.0

// Package platform names the operating systems watchdogctl distinguishes
// between, mainly for config directory resolution. The device itself is
// always Linux; the other constants exist because the CLI is also run from
// developer laptops.
package platform
