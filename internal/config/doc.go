// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/watchdogctl/config.cue (or XDG equivalent on
// Linux, ~/Library/Application Support/watchdogctl/config.cue on macOS,
// %APPDATA%\watchdogctl\config.cue on Windows), then overridden by WATCHDOG_* environment
// variables. Wi-Fi credentials left unset by both sources are filled from a KEY=value
// credentials file, typically provisioned at /etc/watchdogctl/wifi.conf.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations. Constraints the
// schema cannot express, such as host port distinctness, are checked after environment
// overrides are merged.
package config
