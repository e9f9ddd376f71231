// SPDX-License-Identifier: MPL-2.0

package issue

import "strconv"

// idNames maps each Id to the slug accepted on the command line.
var idNames = map[Id]string{
	ContainerEngineNotFoundId:   "container-engine-not-found",
	EngineUnreachableId:         "engine-unreachable",
	ImagePullFailedId:           "image-pull-failed",
	ContainerCreateFailedId:     "container-create-failed",
	AptInstallFailedId:          "apt-install-failed",
	WheelCacheMissingId:         "wheel-cache-missing",
	SSHPortNotMappedId:          "ssh-port-not-mapped",
	CredentialsFileUnreadableId: "credentials-file-unreadable",
	ConfigLoadFailedId:          "config-load-failed",
	PasswordRequiredId:          "password-required",
	ConcurrentRunId:             "concurrent-run",
}

// String returns the slug for the Id, or its numeric form for an Id that
// names no registered issue.
func (i Id) String() string {
	if name, ok := idNames[i]; ok {
		return name
	}
	return strconv.Itoa(int(i))
}

// ParseId resolves user input to an Id, accepting either the slug or the
// numeric form. The second return is false when nothing matches.
func ParseId(s string) (Id, bool) {
	for id, name := range idNames {
		if name == s {
			return id, true
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if _, ok := issues[Id(n)]; ok {
			return Id(n), true
		}
	}
	return 0, false
}
