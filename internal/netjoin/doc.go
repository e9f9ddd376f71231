// SPDX-License-Identifier: MPL-2.0

// Package netjoin joins the device to the configured Wi-Fi network through
// NetworkManager. A join failure never stops a bootstrap; the device may
// already be online through Ethernet, so callers log it and move on.
package netjoin
