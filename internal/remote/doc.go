// SPDX-License-Identifier: MPL-2.0

// Package remote provisions SSH access into the application container: the
// ssh daemon, its configuration, and one account whose uid matches the
// invoking host user so bind-mounted files keep a consistent owner. Every
// step is idempotent; a second run edits nothing that is already in place.
package remote
