// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"

	"watchdogctl/internal/issue"

	"github.com/joho/godotenv"
)

// Credentials file keys. The file uses plain KEY=value lines, one per line,
// with optional quoting and # comments.
const (
	credentialKeySSID     = "WIFI_SSID"
	credentialKeyPassword = "WIFI_PASSWORD"
	credentialKeyIface    = "WIFI_IFACE"
)

// applyCredentialsFile fills Wi-Fi fields left empty by config and
// environment from the credentials file. The file is consulted only when
// the SSID or password is still unset; values already present always win.
//
// A missing file at the default path is not an error, so devices without
// provisioned credentials bootstrap normally. A missing file at an
// explicitly configured path, or a file that exists but cannot be read or
// parsed, is fatal: the operator pointed at credentials that cannot be used.
func applyCredentialsFile(cfg *Config) error {
	if cfg.Wifi.SSID != "" && cfg.Wifi.Password != "" {
		return nil
	}

	path := cfg.Wifi.CredentialsFile
	if path == "" {
		return nil
	}

	explicit := path != DefaultConfig().Wifi.CredentialsFile
	if !fileExists(path) {
		if !explicit {
			return nil
		}
		return issue.NewErrorContext().
			WithOperation("read wifi credentials").
			WithResource(path).
			WithSuggestion("Verify the wifi.credentials_file path is correct").
			WithSuggestion("Provision the file with WIFI_SSID=... and WIFI_PASSWORD=... lines").
			WithSuggestion("Or set WATCHDOG_WIFI_SSID and WATCHDOG_WIFI_PASSWORD instead").
			WithIssue(issue.CredentialsFileUnreadableId).
			Wrap(fmt.Errorf("credentials file not found: %s", path)).
			BuildError()
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("read wifi credentials").
			WithResource(path).
			WithSuggestion("Check the file is readable by the invoking user").
			WithSuggestion("Check the file contains KEY=value lines (WIFI_SSID, WIFI_PASSWORD)").
			WithIssue(issue.CredentialsFileUnreadableId).
			Wrap(err).
			BuildError()
	}

	if cfg.Wifi.SSID == "" {
		cfg.Wifi.SSID = values[credentialKeySSID]
	}
	if cfg.Wifi.Password == "" {
		cfg.Wifi.Password = values[credentialKeyPassword]
	}
	if cfg.Wifi.Interface == "" {
		cfg.Wifi.Interface = values[credentialKeyIface]
	}

	return nil
}
