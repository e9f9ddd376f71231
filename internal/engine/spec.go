// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"
	"strings"

	"watchdogctl/internal/config"
)

type (
	// NetworkPort is one side of a published port mapping. The zero value is
	// not a usable port.
	NetworkPort uint16

	// InvalidNetworkPortError indicates a port outside the usable range.
	InvalidNetworkPortError struct {
		Value NetworkPort
	}

	// PortMapping publishes a container port on the host.
	PortMapping struct {
		Host      NetworkPort
		Container NetworkPort
	}

	// InvalidPortMappingError indicates a port mapping with invalid sides.
	InvalidPortMappingError struct {
		Value     PortMapping
		FieldErrs []error
	}

	// Mount binds a host directory into the container.
	Mount struct {
		// Source is the host directory.
		Source string
		// Target is the absolute mount point inside the container.
		Target string
	}

	// InvalidMountError indicates a mount with invalid paths.
	InvalidMountError struct {
		Value     Mount
		FieldErrs []error
	}

	// DeviceMapping exposes a host device node inside the container.
	DeviceMapping struct {
		Source string
		Target string
	}

	// InvalidDeviceMappingError indicates a device mapping with invalid paths.
	InvalidDeviceMappingError struct {
		Value     DeviceMapping
		FieldErrs []error
	}

	// ContainerSpec is everything needed to create the managed container.
	// Ports, mounts and devices are fixed at creation time; changing them
	// requires removing and recreating the container.
	ContainerSpec struct {
		Name          config.ContainerName
		Image         config.ImageRef
		RestartPolicy config.RestartPolicy
		Ports         []PortMapping
		Mounts        []Mount
		Devices       []DeviceMapping
		// Command keeps the container alive; the application itself is
		// started later via exec.
		Command []string
	}

	// InvalidContainerSpecError indicates a spec that cannot produce a
	// working container.
	InvalidContainerSpecError struct {
		Name      config.ContainerName
		FieldErrs []error
	}
)

var (
	// ErrInvalidNetworkPort indicates a port outside 1-65535.
	ErrInvalidNetworkPort = errors.New("invalid network port")

	// ErrInvalidPortMapping indicates an unusable port mapping.
	ErrInvalidPortMapping = errors.New("invalid port mapping")

	// ErrInvalidMount indicates an unusable mount.
	ErrInvalidMount = errors.New("invalid mount")

	// ErrInvalidDeviceMapping indicates an unusable device mapping.
	ErrInvalidDeviceMapping = errors.New("invalid device mapping")

	// ErrInvalidContainerSpec indicates an unusable container spec.
	ErrInvalidContainerSpec = errors.New("invalid container spec")
)

// Error implements the error interface for InvalidNetworkPortError.
func (e *InvalidNetworkPortError) Error() string {
	return fmt.Sprintf("invalid network port %d: must be between 1 and 65535", e.Value)
}

// Unwrap returns the sentinel error for use with errors.Is.
func (e *InvalidNetworkPortError) Unwrap() error { return ErrInvalidNetworkPort }

// Error implements the error interface for InvalidPortMappingError.
func (e *InvalidPortMappingError) Error() string {
	if len(e.FieldErrs) > 0 {
		return fmt.Sprintf("invalid port mapping %q: %v", e.Value, errors.Join(e.FieldErrs...))
	}
	return fmt.Sprintf("invalid port mapping %q", e.Value)
}

// Unwrap returns the sentinel error for use with errors.Is.
func (e *InvalidPortMappingError) Unwrap() error { return ErrInvalidPortMapping }

// Error implements the error interface for InvalidMountError.
func (e *InvalidMountError) Error() string {
	if len(e.FieldErrs) > 0 {
		return fmt.Sprintf("invalid mount %q: %v", e.Value, errors.Join(e.FieldErrs...))
	}
	return fmt.Sprintf("invalid mount %q", e.Value)
}

// Unwrap returns the sentinel error for use with errors.Is.
func (e *InvalidMountError) Unwrap() error { return ErrInvalidMount }

// Error implements the error interface for InvalidDeviceMappingError.
func (e *InvalidDeviceMappingError) Error() string {
	if len(e.FieldErrs) > 0 {
		return fmt.Sprintf("invalid device mapping %q: %v", e.Value, errors.Join(e.FieldErrs...))
	}
	return fmt.Sprintf("invalid device mapping %q", e.Value)
}

// Unwrap returns the sentinel error for use with errors.Is.
func (e *InvalidDeviceMappingError) Unwrap() error { return ErrInvalidDeviceMapping }

// Error implements the error interface for InvalidContainerSpecError.
func (e *InvalidContainerSpecError) Error() string {
	if len(e.FieldErrs) > 0 {
		return fmt.Sprintf("invalid container spec %q: %v", e.Name, errors.Join(e.FieldErrs...))
	}
	return fmt.Sprintf("invalid container spec %q", e.Name)
}

// Unwrap returns the sentinel error for use with errors.Is.
func (e *InvalidContainerSpecError) Unwrap() error { return ErrInvalidContainerSpec }

// Validate checks that the port is usable.
func (p NetworkPort) Validate() error {
	if p == 0 {
		return &InvalidNetworkPortError{Value: p}
	}
	return nil
}

// String returns the mapping in the engine's host:container publish syntax.
func (m PortMapping) String() string {
	return fmt.Sprintf("%d:%d", m.Host, m.Container)
}

// Validate checks both sides of the mapping.
func (m PortMapping) Validate() error {
	var errs []error
	if err := m.Host.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("host: %w", err))
	}
	if err := m.Container.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("container: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidPortMappingError{Value: m, FieldErrs: errs}
	}
	return nil
}

// String returns the mount in the engine's source:target volume syntax.
func (m Mount) String() string {
	return m.Source + ":" + m.Target
}

// Validate checks that the mount has a source and an absolute target.
func (m Mount) Validate() error {
	errs := validatePathPair(m.Source, m.Target)
	if len(errs) > 0 {
		return &InvalidMountError{Value: m, FieldErrs: errs}
	}
	return nil
}

// String returns the mapping in the engine's source:target device syntax.
func (d DeviceMapping) String() string {
	return d.Source + ":" + d.Target
}

// Validate checks that the device mapping has absolute paths on both sides.
func (d DeviceMapping) Validate() error {
	errs := validatePathPair(d.Source, d.Target)
	if len(errs) == 0 && !strings.HasPrefix(d.Source, "/") {
		errs = append(errs, errors.New("source must be an absolute path"))
	}
	if len(errs) > 0 {
		return &InvalidDeviceMappingError{Value: d, FieldErrs: errs}
	}
	return nil
}

func validatePathPair(source, target string) []error {
	var errs []error
	if strings.TrimSpace(source) == "" {
		errs = append(errs, errors.New("source must not be empty"))
	}
	if strings.TrimSpace(target) == "" {
		errs = append(errs, errors.New("target must not be empty"))
	} else if !strings.HasPrefix(target, "/") {
		errs = append(errs, errors.New("target must be an absolute path"))
	}
	return errs
}

// Validate checks the whole spec, including that host ports are distinct.
// It reports every problem at once rather than stopping at the first.
func (s ContainerSpec) Validate() error {
	var errs []error

	if ok, nameErrs := s.Name.IsValid(); !ok {
		errs = append(errs, nameErrs...)
	}
	if ok, imageErrs := s.Image.IsValid(); !ok {
		errs = append(errs, imageErrs...)
	}
	if ok, policyErrs := s.RestartPolicy.IsValid(); !ok {
		errs = append(errs, policyErrs...)
	}

	seen := make(map[NetworkPort]bool, len(s.Ports))
	for i, p := range s.Ports {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("port %d: %w", i, err))
			continue
		}
		if seen[p.Host] {
			errs = append(errs, fmt.Errorf("port %d: host port %d published twice", i, p.Host))
		}
		seen[p.Host] = true
	}
	for i, m := range s.Mounts {
		if err := m.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mount %d: %w", i, err))
		}
	}
	for i, d := range s.Devices {
		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("device %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return &InvalidContainerSpecError{Name: s.Name, FieldErrs: errs}
	}
	return nil
}

// CreateArgs builds the argument list for creating a container from the
// spec. Flag order is stable so callers and tests see deterministic
// command lines.
func (s ContainerSpec) CreateArgs() []string {
	args := []string{"create", "--name", s.Name.String(), "--restart", s.RestartPolicy.String()}
	for _, p := range s.Ports {
		args = append(args, "-p", p.String())
	}
	for _, m := range s.Mounts {
		args = append(args, "-v", m.String())
	}
	for _, d := range s.Devices {
		args = append(args, "--device", d.String())
	}
	args = append(args, s.Image.String())
	return append(args, s.Command...)
}
