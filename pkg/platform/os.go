// SPDX-License-Identifier: MPL-2.0

package platform

// Operating system names as reported by runtime.GOOS, collected here so
// comparisons read as identifiers rather than scattered string literals.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)
