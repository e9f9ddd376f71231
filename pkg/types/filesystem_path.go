// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFilesystemPath is the sentinel error wrapped by InvalidFilesystemPathError.
var ErrInvalidFilesystemPath = errors.New("invalid filesystem path")

type (
	// FilesystemPath is a host filesystem path supplied by the operator,
	// typically through the --config flag or a config directory override.
	// The zero value ("") means "not set"; a set value must contain at
	// least one non-whitespace character.
	FilesystemPath string

	// InvalidFilesystemPathError is returned when a set FilesystemPath is
	// whitespace-only.
	InvalidFilesystemPathError struct {
		Value FilesystemPath
	}
)

// String returns the raw string form of the path.
func (p FilesystemPath) String() string { return string(p) }

// IsValid reports whether the path is usable, returning the individual
// validation errors when it is not.
func (p FilesystemPath) IsValid() (bool, []error) {
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidFilesystemPathError{Value: p}}
	}
	return true, nil
}

// Expand resolves a leading "~" or "~/" against the current user's home
// directory and cleans the result. Paths without a tilde prefix are only
// cleaned, and the tilde is kept literal when the home directory cannot be
// determined. The zero value expands to itself, and "~user" forms are not
// interpreted.
func (p FilesystemPath) Expand() string {
	s := string(p)
	if s == "" {
		return ""
	}
	if s != "~" && !strings.HasPrefix(s, "~/") {
		return filepath.Clean(s)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(s)
	}
	if s == "~" {
		return home
	}
	return filepath.Join(home, s[2:])
}

// Error implements the error interface for InvalidFilesystemPathError.
func (e *InvalidFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidFilesystemPath for errors.Is() compatibility.
func (e *InvalidFilesystemPathError) Unwrap() error { return ErrInvalidFilesystemPath }
