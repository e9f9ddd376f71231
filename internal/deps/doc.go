// SPDX-License-Identifier: MPL-2.0

// Package deps reconciles the apt and pip package sets on the host and
// inside the application container. The offline decision is made once by
// the caller and passed in; nothing here probes the network. Offline apt is
// skipped outright, offline pip installs from the local wheel cache only,
// and an online pip failure gets exactly one fallback attempt from that
// cache before it is reported.
package deps
