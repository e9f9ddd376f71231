// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"

	"watchdogctl/pkg/types"
)

var (
	// globalConfig caches the loaded configuration for the process lifetime.
	globalConfig *Config
	// configPath records where the cached configuration was loaded from.
	// Empty means defaults only (no config file found).
	configPath string
	// errLastLoad stores the most recent load failure for later retrieval
	// by Get() callers that fall back to defaults.
	errLastLoad error

	// configDirOverride allows tests to override the config directory.
	// This is necessary because os.UserHomeDir() doesn't reliably respect
	// the HOME environment variable on all platforms (e.g., macOS in CI).
	configDirOverride string
	// configFilePathOverride forces loading from a specific file, set by
	// the --config flag.
	configFilePathOverride string
)

// Load returns the process-wide configuration, loading it on first use.
// Subsequent calls return the cached value until Reset or ResetCache.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{
		ConfigFilePath: types.FilesystemPath(configFilePathOverride),
	})
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	configPath = path
	return cfg, nil
}

// Get returns the configuration, falling back to defaults when loading
// fails. The load error, if any, is retrievable via LastLoadError so
// callers can surface it after startup instead of silently losing it.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		errLastLoad = err
		return DefaultConfig()
	}
	errLastLoad = nil
	return cfg
}

// LastLoadError returns the error from the most recent failed Get() load,
// or nil if the last load succeeded.
func LastLoadError() error {
	return errLastLoad
}

// ConfigFilePath returns the path of the loaded config file, or an empty
// string when the configuration came from defaults only.
func ConfigFilePath() string {
	return configPath
}

// SetConfigFilePathOverride forces loading from a specific config file.
// Any cached configuration is discarded so the next Load() uses the new path.
func SetConfigFilePathOverride(path string) {
	configFilePathOverride = path
	ResetCache()
}

// SetConfigDirOverride sets a custom config directory path.
// This is primarily intended for testing to bypass os.UserHomeDir() which
// doesn't reliably respect the HOME env var on all platforms (e.g., macOS in CI).
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// ResetCache discards the cached configuration, forcing the next Load()
// to re-read from disk. Overrides are preserved.
func ResetCache() {
	globalConfig = nil
	configPath = ""
}

// Reset clears the cache, overrides, and stored load error.
// Call from test cleanup to restore defaults.
func Reset() {
	globalConfig = nil
	configPath = ""
	errLastLoad = nil
	configDirOverride = ""
	configFilePathOverride = ""
}
