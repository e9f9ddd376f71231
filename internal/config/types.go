// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// RestartNo never restarts the container.
	RestartNo RestartPolicy = "no"
	// RestartAlways restarts the container regardless of exit status.
	RestartAlways RestartPolicy = "always"
	// RestartOnFailure restarts the container only on non-zero exit.
	RestartOnFailure RestartPolicy = "on-failure"
	// RestartUnlessStopped restarts the container unless explicitly stopped.
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

var (
	// ErrInvalidContainerName is the sentinel error wrapped by InvalidContainerNameError.
	ErrInvalidContainerName = errors.New("invalid container name")
	// ErrInvalidImageRef is the sentinel error wrapped by InvalidImageRefError.
	ErrInvalidImageRef = errors.New("invalid image reference")
	// ErrInvalidRestartPolicy is the sentinel error wrapped by InvalidRestartPolicyError.
	ErrInvalidRestartPolicy = errors.New("invalid restart policy")
	// ErrInvalidPort is the sentinel error wrapped by InvalidPortError.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidContainerSection is the sentinel error wrapped by InvalidContainerSectionError.
	ErrInvalidContainerSection = errors.New("invalid container section")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	// containerNameRe is the engine's container naming rule.
	containerNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
)

type (
	// ContainerName is the name of the managed container. A valid name is
	// non-empty and matches the engine's naming rule.
	ContainerName string

	// InvalidContainerNameError is returned when a ContainerName value does
	// not satisfy the engine's naming rule. It wraps ErrInvalidContainerName
	// for errors.Is() compatibility.
	InvalidContainerNameError struct {
		Value ContainerName
	}

	// ImageRef is a container image reference ("ubuntu:22.04").
	// A valid reference is non-empty and not whitespace-only.
	ImageRef string

	// InvalidImageRefError is returned when an ImageRef value is empty or
	// whitespace-only. It wraps ErrInvalidImageRef for errors.Is().
	InvalidImageRefError struct {
		Value ImageRef
	}

	// RestartPolicy is the container restart policy passed at creation.
	RestartPolicy string

	// InvalidRestartPolicyError is returned when a RestartPolicy value is
	// not recognized. It wraps ErrInvalidRestartPolicy for errors.Is().
	InvalidRestartPolicyError struct {
		Value RestartPolicy
	}

	// Port is a TCP port number. Valid values are 1-65535.
	Port int

	// InvalidPortError is returned when a Port value is out of range.
	// It wraps ErrInvalidPort for errors.Is() compatibility.
	InvalidPortError struct {
		Value Port
	}

	// InvalidContainerSectionError is returned when the container section has
	// invalid fields. It wraps ErrInvalidContainerSection for errors.Is()
	// compatibility and collects field-level validation errors.
	InvalidContainerSectionError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-sections.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the full bootstrap configuration. Every field has a
	// default, can be set in the CUE config file, and can be overridden
	// through the WATCHDOG_* environment surface.
	Config struct {
		// Engine configures how the container engine CLI is invoked.
		Engine EngineSection `json:"engine" toml:"engine" mapstructure:"engine"`
		// Container describes the managed application container.
		Container ContainerSection `json:"container" toml:"container" mapstructure:"container"`
		// Driver configures kernel module provisioning.
		Driver DriverSection `json:"driver" toml:"driver" mapstructure:"driver"`
		// Deps configures system and Python dependency installation.
		Deps DepsSection `json:"deps" toml:"deps" mapstructure:"deps"`
		// Remote configures SSH access into the container.
		Remote RemoteSection `json:"remote" toml:"remote" mapstructure:"remote"`
		// Wifi configures the wireless network join.
		Wifi WifiSection `json:"wifi" toml:"wifi" mapstructure:"wifi"`
		// Supervisor configures the application process restart.
		Supervisor SupervisorSection `json:"supervisor" toml:"supervisor" mapstructure:"supervisor"`
		// Hostname, when set, is applied to the device at bootstrap.
		Hostname string `json:"hostname" toml:"hostname" mapstructure:"hostname"`
	}

	// EngineSection configures the container engine CLI.
	EngineSection struct {
		// Binary is the engine CLI name or absolute path.
		Binary string `json:"binary" toml:"binary" mapstructure:"binary"`
	}

	// ContainerSection describes the managed container. Port mappings and
	// mounts are fixed at creation time; changing them requires recreating
	// the container.
	ContainerSection struct {
		Name          ContainerName `json:"name" toml:"name" mapstructure:"name"`
		Image         ImageRef      `json:"image" toml:"image" mapstructure:"image"`
		RestartPolicy RestartPolicy `json:"restart_policy" toml:"restart_policy" mapstructure:"restart_policy"`
		// AppHostPort/AppContainerPort expose the application HTTP endpoint.
		AppHostPort      Port `json:"app_host_port" toml:"app_host_port" mapstructure:"app_host_port"`
		AppContainerPort Port `json:"app_container_port" toml:"app_container_port" mapstructure:"app_container_port"`
		// SSHHostPort/SSHContainerPort expose the container's sshd.
		SSHHostPort      Port `json:"ssh_host_port" toml:"ssh_host_port" mapstructure:"ssh_host_port"`
		SSHContainerPort Port `json:"ssh_container_port" toml:"ssh_container_port" mapstructure:"ssh_container_port"`
		// AppDir is the host directory bind-mounted at AppMount.
		AppDir   string `json:"app_dir" toml:"app_dir" mapstructure:"app_dir"`
		AppMount string `json:"app_mount" toml:"app_mount" mapstructure:"app_mount"`
		// DeviceGlob selects host device nodes mapped into the container.
		// It is re-evaluated on every run.
		DeviceGlob string `json:"device_glob" toml:"device_glob" mapstructure:"device_glob"`
	}

	// DriverSection configures kernel module provisioning. The source tiers
	// are tried in order: BuildDir, VendorDir, VendorArchive, then Repo.
	DriverSection struct {
		Module string `json:"module" toml:"module" mapstructure:"module"`
		Repo   string `json:"repo" toml:"repo" mapstructure:"repo"`
		// Commit pins the clone; empty means the repository HEAD.
		Commit        string `json:"commit" toml:"commit" mapstructure:"commit"`
		BuildDir      string `json:"build_dir" toml:"build_dir" mapstructure:"build_dir"`
		VendorDir     string `json:"vendor_dir" toml:"vendor_dir" mapstructure:"vendor_dir"`
		VendorArchive string `json:"vendor_archive" toml:"vendor_archive" mapstructure:"vendor_archive"`
	}

	// DepsSection configures dependency installation on the host and inside
	// the container.
	DepsSection struct {
		AptPackages  []string `json:"apt_packages" toml:"apt_packages" mapstructure:"apt_packages"`
		Requirements string   `json:"requirements" toml:"requirements" mapstructure:"requirements"`
		Venv         string   `json:"venv" toml:"venv" mapstructure:"venv"`
		WheelCache   string   `json:"wheel_cache" toml:"wheel_cache" mapstructure:"wheel_cache"`
		SkipApt      bool     `json:"skip_apt" toml:"skip_apt" mapstructure:"skip_apt"`
		// Offline forces cache-only installs even when the network probe
		// would succeed.
		Offline bool `json:"offline" toml:"offline" mapstructure:"offline"`
	}

	// RemoteSection configures SSH access provisioning.
	RemoteSection struct {
		// User is the account name inside the container. Empty means the
		// invoking host user.
		User string `json:"user" toml:"user" mapstructure:"user"`
		// Password for the account. Empty means prompt interactively.
		Password string `json:"password" toml:"password" mapstructure:"password"`
		// Pubkey is the host public key file propagated to the account.
		// Empty means the invoking user's ~/.ssh/id_rsa.pub.
		Pubkey string `json:"pubkey" toml:"pubkey" mapstructure:"pubkey"`
	}

	// WifiSection configures the wireless join. SSID and Password fall back
	// to the credentials file when unset in the environment.
	WifiSection struct {
		SSID      string `json:"ssid" toml:"ssid" mapstructure:"ssid"`
		Password  string `json:"password" toml:"password" mapstructure:"password"`
		Interface string `json:"iface" toml:"iface" mapstructure:"iface"`
		// CredentialsFile is the KEY=value file consulted for unset values.
		CredentialsFile string `json:"credentials_file" toml:"credentials_file" mapstructure:"credentials_file"`
	}

	// SupervisorSection configures the application relaunch.
	SupervisorSection struct {
		// Pattern is matched by pkill -f against running processes.
		Pattern string `json:"pattern" toml:"pattern" mapstructure:"pattern"`
		// Launch is the command started detached inside the container.
		Launch string `json:"launch" toml:"launch" mapstructure:"launch"`
		// Workdir inside the container; empty means the app mount point.
		Workdir string `json:"workdir" toml:"workdir" mapstructure:"workdir"`
	}
)

// String returns the string representation of the ContainerName.
func (n ContainerName) String() string { return string(n) }

// IsValid returns whether the ContainerName satisfies the engine's naming
// rule, and a list of validation errors if it does not.
func (n ContainerName) IsValid() (bool, []error) {
	if !containerNameRe.MatchString(string(n)) {
		return false, []error{&InvalidContainerNameError{Value: n}}
	}
	return true, nil
}

// Error implements the error interface for InvalidContainerNameError.
func (e *InvalidContainerNameError) Error() string {
	return fmt.Sprintf("invalid container name %q: must match %s", e.Value, containerNameRe.String())
}

// Unwrap returns ErrInvalidContainerName for errors.Is() compatibility.
func (e *InvalidContainerNameError) Unwrap() error { return ErrInvalidContainerName }

// String returns the string representation of the ImageRef.
func (r ImageRef) String() string { return string(r) }

// IsValid returns whether the ImageRef is non-empty, and a list of
// validation errors if it is not.
func (r ImageRef) IsValid() (bool, []error) {
	if strings.TrimSpace(string(r)) == "" {
		return false, []error{&InvalidImageRefError{Value: r}}
	}
	return true, nil
}

// Error implements the error interface for InvalidImageRefError.
func (e *InvalidImageRefError) Error() string {
	return fmt.Sprintf("invalid image reference %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidImageRef for errors.Is() compatibility.
func (e *InvalidImageRefError) Unwrap() error { return ErrInvalidImageRef }

// String returns the string representation of the RestartPolicy.
func (p RestartPolicy) String() string { return string(p) }

// IsValid returns whether the RestartPolicy is one of the defined policies,
// and a list of validation errors if it is not.
func (p RestartPolicy) IsValid() (bool, []error) {
	switch p {
	case RestartNo, RestartAlways, RestartOnFailure, RestartUnlessStopped:
		return true, nil
	default:
		return false, []error{&InvalidRestartPolicyError{Value: p}}
	}
}

// Error implements the error interface for InvalidRestartPolicyError.
func (e *InvalidRestartPolicyError) Error() string {
	return fmt.Sprintf("invalid restart policy %q (valid: no, always, on-failure, unless-stopped)", e.Value)
}

// Unwrap returns ErrInvalidRestartPolicy for errors.Is() compatibility.
func (e *InvalidRestartPolicyError) Unwrap() error { return ErrInvalidRestartPolicy }

// IsValid returns whether the Port is in the valid TCP range, and a list of
// validation errors if it is not.
func (p Port) IsValid() (bool, []error) {
	if p < 1 || p > 65535 {
		return false, []error{&InvalidPortError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPortError.
func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port %d: must be in range 1-65535", e.Value)
}

// Unwrap returns ErrInvalidPort for errors.Is() compatibility.
func (e *InvalidPortError) Unwrap() error { return ErrInvalidPort }

// IsValid returns whether the ContainerSection has valid fields. It
// delegates to the typed fields and additionally rejects duplicate host
// ports, which the engine would only reject at creation time.
func (c ContainerSection) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Name.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Image.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.RestartPolicy.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, p := range []Port{c.AppHostPort, c.AppContainerPort, c.SSHHostPort, c.SSHContainerPort} {
		if valid, fieldErrs := p.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if c.AppHostPort == c.SSHHostPort {
		errs = append(errs, fmt.Errorf("app and ssh host ports are both %d: host ports must be distinct", c.AppHostPort))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidContainerSectionError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidContainerSectionError.
func (e *InvalidContainerSectionError) Error() string {
	return fmt.Sprintf("invalid container section: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidContainerSection for errors.Is() compatibility.
func (e *InvalidContainerSectionError) Unwrap() error { return ErrInvalidContainerSection }

// IsValid returns whether the Config has valid fields. It delegates to
// Container.IsValid(); the remaining sections are free-form strings whose
// constraints the CUE schema already expresses.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Container.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineSection{
			Binary: "docker",
		},
		Container: ContainerSection{
			Name:             "watchdog-ubuntu2204",
			Image:            "ubuntu:22.04",
			RestartPolicy:    RestartUnlessStopped,
			AppHostPort:      8080,
			AppContainerPort: 8080,
			SSHHostPort:      2222,
			SSHContainerPort: 22,
			AppDir:           "/opt/watchdog/app",
			AppMount:         "/opt/app",
			DeviceGlob:       "/dev/video*",
		},
		Driver: DriverSection{
			Module:        "v4l2loopback",
			Repo:          "https://github.com/umlaeute/v4l2loopback.git",
			Commit:        "", // pin a commit for reproducible builds
			BuildDir:      "/usr/src/v4l2loopback",
			VendorDir:     "/opt/watchdog/vendor/v4l2loopback",
			VendorArchive: "/opt/watchdog/vendor/v4l2loopback.tar.gz",
		},
		Deps: DepsSection{
			AptPackages:  []string{"build-essential", "python3-venv", "python3-pip", "v4l-utils"},
			Requirements: "/opt/watchdog/app/requirements.txt",
			Venv:         "/opt/watchdog/venv",
			WheelCache:   "/opt/watchdog/wheels",
			SkipApt:      false,
			Offline:      false,
		},
		Remote: RemoteSection{
			User:     "", // invoking user
			Password: "",
			Pubkey:   "", // ~/.ssh/id_rsa.pub of the invoking user
		},
		Wifi: WifiSection{
			SSID:            "",
			Password:        "",
			Interface:       "wlan0",
			CredentialsFile: "/etc/watchdogctl/wifi.conf",
		},
		Supervisor: SupervisorSection{
			Pattern: "uvicorn",
			Launch:  "/opt/venv/bin/python3 -m uvicorn main:app --host 0.0.0.0 --port 8080",
			Workdir: "", // app mount point
		},
		Hostname: "",
	}
}
