// SPDX-License-Identifier: MPL-2.0

package netjoin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"watchdogctl/internal/config"
	"watchdogctl/internal/run"
)

// Join connects the device to the configured SSID via nmcli. An unset SSID
// skips the step; an SSID already active on the radio is a no-op.
func Join(ctx context.Context, r *run.Runner, cfg config.WifiSection) error {
	if cfg.SSID == "" {
		slog.Debug("no wifi ssid configured, skipping network join")
		return nil
	}

	active, err := activeSSIDs(ctx, r)
	if err != nil {
		// The radio may be mid-scan or the tool missing; connecting
		// straight away answers that conclusively.
		slog.Debug("could not list active wifi connections", "error", err)
	}
	if active[cfg.SSID] {
		slog.Info("wifi already connected", "ssid", cfg.SSID)
		return nil
	}

	slog.Info("joining wifi network", "ssid", cfg.SSID, "interface", cfg.Interface)
	if err := r.Run(ctx, "nmcli", connectArgs(cfg)...); err != nil {
		return fmt.Errorf("join wifi network %s: %w", cfg.SSID, err)
	}
	slog.Info("wifi connected", "ssid", cfg.SSID)
	return nil
}

// activeSSIDs parses the terse nmcli listing, one "yes:ssid" or "no:ssid"
// line per visible network. nmcli escapes colons inside SSIDs.
func activeSSIDs(ctx context.Context, r *run.Runner) (map[string]bool, error) {
	out, err := r.Output(ctx, "nmcli", "-t", "-f", "active,ssid", "dev", "wifi")
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		flag, ssid, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		ssid = strings.ReplaceAll(ssid, `\:`, ":")
		if strings.EqualFold(flag, "yes") && ssid != "" {
			active[ssid] = true
		}
	}
	return active, nil
}

func connectArgs(cfg config.WifiSection) []string {
	args := []string{"device", "wifi", "connect", cfg.SSID}
	if cfg.Password != "" {
		args = append(args, "password", cfg.Password)
	}
	if cfg.Interface != "" {
		args = append(args, "ifname", cfg.Interface)
	}
	return args
}
