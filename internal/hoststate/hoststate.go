// SPDX-License-Identifier: MPL-2.0

package hoststate

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"watchdogctl/internal/run"
)

const (
	// procModules is the kernel's loaded-module table.
	procModules = "/proc/modules"

	// DefaultProbeAddr is the connectivity probe target: the apt mirror
	// host, since package installation is what the answer gates.
	DefaultProbeAddr = "archive.ubuntu.com:80"

	// probeTimeout bounds the single connectivity dial. A slow or filtered
	// network counts as offline.
	probeTimeout = 3 * time.Second
)

// User identifies the human behind the tool invocation.
type User struct {
	Name    string
	UID     int
	HomeDir string
}

// ModuleLoaded reports whether the named kernel module is currently loaded.
func ModuleLoaded(name string) (bool, error) {
	return moduleLoadedIn(procModules, name)
}

// moduleLoadedIn scans a /proc/modules-format file for the module. Dashes
// and underscores are interchangeable in module names, as modprobe treats
// them.
func moduleLoadedIn(path, name string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("read module table %s: %w", path, err)
	}
	defer f.Close()

	want := normalizeModuleName(name)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 && normalizeModuleName(fields[0]) == want {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("scan module table %s: %w", path, err)
	}
	return false, nil
}

func normalizeModuleName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Devices enumerates host device nodes matching the glob. The result is
// computed fresh on every call and reflects whatever is plugged in right
// now. An empty result is not an error; callers decide how loudly to react.
func Devices(glob string) ([]string, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices %q: %w", glob, err)
	}
	return matches, nil
}

// InvokingUser resolves the human user behind this process. Under sudo the
// SUDO_USER/SUDO_UID variables identify the real invoker; otherwise the
// process owner is the answer.
func InvokingUser() (*User, error) {
	return invokingUserWith(os.Getenv)
}

// invokingUserWith resolves the invoking user through the provided getenv,
// so tests can exercise the sudo paths without being root.
func invokingUserWith(getenv func(string) string) (*User, error) {
	if name := getenv("SUDO_USER"); name != "" {
		u, err := user.Lookup(name)
		if err == nil {
			uid, convErr := strconv.Atoi(u.Uid)
			if convErr != nil {
				return nil, fmt.Errorf("parse uid %q for %s: %w", u.Uid, name, convErr)
			}
			return &User{Name: u.Username, UID: uid, HomeDir: u.HomeDir}, nil
		}
		// Not in the local passwd database (LDAP hosts); SUDO_UID still
		// carries the number we need.
		if uidStr := getenv("SUDO_UID"); uidStr != "" {
			if uid, convErr := strconv.Atoi(uidStr); convErr == nil {
				return &User{Name: name, UID: uid, HomeDir: "/home/" + name}, nil
			}
		}
		return nil, fmt.Errorf("resolve sudo user %s: %w", name, err)
	}

	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("parse uid %q for %s: %w", u.Uid, u.Username, err)
	}
	return &User{Name: u.Username, UID: uid, HomeDir: u.HomeDir}, nil
}

// Online reports whether the network is reachable with a single bounded TCP
// dial. It never returns an error; an unreachable network is a state, not a
// failure. The orchestrator calls this at most once per run.
func Online(ctx context.Context, addr string) bool {
	d := net.Dialer{Timeout: probeTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		slog.Debug("connectivity probe failed", "addr", addr, "error", err)
		return false
	}
	_ = conn.Close()
	return true
}

// EnsureHostname applies the configured hostname override when it differs
// from the current hostname. It reports whether a change was made. An empty
// override means no opinion.
func EnsureHostname(ctx context.Context, r *run.Runner, want string) (bool, error) {
	if want == "" {
		return false, nil
	}
	current, err := os.Hostname()
	if err != nil {
		return false, fmt.Errorf("read hostname: %w", err)
	}
	if current == want {
		slog.Debug("hostname already set", "hostname", want)
		return false, nil
	}
	slog.Info("setting hostname", "from", current, "to", want)
	if err := r.Quiet(ctx, "hostnamectl", "set-hostname", want); err != nil {
		return false, fmt.Errorf("set hostname to %s: %w", want, err)
	}
	return true, nil
}
