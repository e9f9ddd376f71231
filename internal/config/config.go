// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"watchdogctl/internal/issue"
	"watchdogctl/pkg/cueutil"
	"watchdogctl/pkg/platform"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "watchdogctl"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "WATCHDOG"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the watchdogctl configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state. Callers that want caching can wrap this function.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	resolvedPath := ""

	// If a custom config file path is set via --config flag, use it exclusively.
	if opts.ConfigFilePath != "" {
		cfgFilePath := opts.ConfigFilePath.Expand()
		if !fileExists(cfgFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(cfgFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'watchdogctl config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", cfgFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, cfgFilePath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(cfgFilePath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'watchdogctl config --help' for configuration options").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
		resolvedPath = cfgFilePath
	} else {
		// Get config directory
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath.Expand())
		if err != nil {
			return nil, "", err
		}

		// Try to load CUE config file
		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", issue.NewErrorContext().
					WithOperation("load configuration").
					WithResource(cuePath).
					WithSuggestion("Check that the file contains valid CUE syntax").
					WithSuggestion("Verify the configuration values match the expected schema").
					WithSuggestion("See 'watchdogctl config --help' for configuration options").
					WithIssue(issue.ConfigLoadFailedId).
					Wrap(err).
					BuildError()
			}
			resolvedPath = cuePath
		} else {
			// Also check current directory
			localCuePath := ConfigFileName + "." + ConfigFileExt
			if fileExists(localCuePath) {
				if err := loadCUEIntoViper(v, localCuePath); err != nil {
					return nil, "", issue.NewErrorContext().
						WithOperation("load configuration").
						WithResource(localCuePath).
						WithSuggestion("Check that the file contains valid CUE syntax").
						WithSuggestion("Verify the configuration values match the expected schema").
						WithSuggestion("See 'watchdogctl config --help' for configuration options").
						WithIssue(issue.ConfigLoadFailedId).
						Wrap(err).
						BuildError()
				}
				resolvedPath = localCuePath
			}
			// If no config file found, use defaults (no error)
		}
	}

	if err := bindEnvironment(v); err != nil {
		return nil, "", fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Fill unset Wi-Fi credentials from the credentials file, if present.
	if err := applyCredentialsFile(&cfg); err != nil {
		return nil, "", err
	}

	// Validate constraints the CUE schema cannot see once environment
	// overrides are merged in (typed fields, distinct host ports).
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check WATCHDOG_* environment overrides for out-of-range values").
			WithSuggestion("Ensure the app and ssh host ports are distinct").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// setDefaults registers the default value for every config key so that
// environment overrides apply even when no config file exists.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("hostname", defaults.Hostname)
	v.SetDefault("engine.binary", defaults.Engine.Binary)
	v.SetDefault("container.name", defaults.Container.Name)
	v.SetDefault("container.image", defaults.Container.Image)
	v.SetDefault("container.restart_policy", defaults.Container.RestartPolicy)
	v.SetDefault("container.app_host_port", defaults.Container.AppHostPort)
	v.SetDefault("container.app_container_port", defaults.Container.AppContainerPort)
	v.SetDefault("container.ssh_host_port", defaults.Container.SSHHostPort)
	v.SetDefault("container.ssh_container_port", defaults.Container.SSHContainerPort)
	v.SetDefault("container.app_dir", defaults.Container.AppDir)
	v.SetDefault("container.app_mount", defaults.Container.AppMount)
	v.SetDefault("container.device_glob", defaults.Container.DeviceGlob)
	v.SetDefault("driver.module", defaults.Driver.Module)
	v.SetDefault("driver.repo", defaults.Driver.Repo)
	v.SetDefault("driver.commit", defaults.Driver.Commit)
	v.SetDefault("driver.build_dir", defaults.Driver.BuildDir)
	v.SetDefault("driver.vendor_dir", defaults.Driver.VendorDir)
	v.SetDefault("driver.vendor_archive", defaults.Driver.VendorArchive)
	v.SetDefault("deps.apt_packages", defaults.Deps.AptPackages)
	v.SetDefault("deps.requirements", defaults.Deps.Requirements)
	v.SetDefault("deps.venv", defaults.Deps.Venv)
	v.SetDefault("deps.wheel_cache", defaults.Deps.WheelCache)
	v.SetDefault("deps.skip_apt", defaults.Deps.SkipApt)
	v.SetDefault("deps.offline", defaults.Deps.Offline)
	v.SetDefault("remote.user", defaults.Remote.User)
	v.SetDefault("remote.password", defaults.Remote.Password)
	v.SetDefault("remote.pubkey", defaults.Remote.Pubkey)
	v.SetDefault("wifi.ssid", defaults.Wifi.SSID)
	v.SetDefault("wifi.password", defaults.Wifi.Password)
	v.SetDefault("wifi.iface", defaults.Wifi.Interface)
	v.SetDefault("wifi.credentials_file", defaults.Wifi.CredentialsFile)
	v.SetDefault("supervisor.pattern", defaults.Supervisor.Pattern)
	v.SetDefault("supervisor.launch", defaults.Supervisor.Launch)
	v.SetDefault("supervisor.workdir", defaults.Supervisor.Workdir)
}

// bindEnvironment wires the WATCHDOG_* environment surface. Every key is
// reachable through the section-qualified automatic name (for example
// WATCHDOG_CONTAINER_IMAGE); a handful of frequently used keys additionally
// get a short documented alias.
func bindEnvironment(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases for the names used in guides. The automatic
	// section-qualified name keeps working alongside each alias.
	aliases := []struct {
		key string
		env string
	}{
		{"container.app_host_port", "WATCHDOG_APP_HOST_PORT"},
		{"container.ssh_host_port", "WATCHDOG_SSH_HOST_PORT"},
		{"deps.wheel_cache", "WATCHDOG_WHEEL_CACHE"},
		{"deps.skip_apt", "WATCHDOG_SKIP_APT"},
		{"deps.offline", "WATCHDOG_OFFLINE"},
	}
	for _, a := range aliases {
		if err := v.BindEnv(a.key, a.env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", a.env, err)
		}
	}

	return nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config
// schema, and merges its contents into Viper. Validation is non-concrete
// because every config field is optional and falls back to a default.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.ParseAndDecodeString[map[string]any](
		configSchema,
		data,
		"#Config",
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
	)
	if err != nil {
		return err
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(*configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig creates a default config file if it doesn't exist
func CreateDefaultConfig() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		return nil // File exists
	}

	defaults := DefaultConfig()
	cueContent := GenerateCUE(defaults)

	if err := os.WriteFile(cfgPath, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Save writes the current configuration to file
func Save(cfg *Config) error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	cueContent := GenerateCUE(cfg)

	if err := os.WriteFile(cfgPath, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// watchdogctl Configuration File\n")
	sb.WriteString("// Values left out fall back to built-in defaults.\n\n")

	if cfg.Hostname != "" {
		sb.WriteString(fmt.Sprintf("hostname: %q\n\n", cfg.Hostname))
	}

	sb.WriteString("engine: {\n")
	sb.WriteString(fmt.Sprintf("\tbinary: %q\n", cfg.Engine.Binary))
	sb.WriteString("}\n")

	sb.WriteString("\ncontainer: {\n")
	sb.WriteString(fmt.Sprintf("\tname:               %q\n", cfg.Container.Name))
	sb.WriteString(fmt.Sprintf("\timage:              %q\n", cfg.Container.Image))
	sb.WriteString(fmt.Sprintf("\trestart_policy:     %q\n", cfg.Container.RestartPolicy))
	sb.WriteString(fmt.Sprintf("\tapp_host_port:      %d\n", cfg.Container.AppHostPort))
	sb.WriteString(fmt.Sprintf("\tapp_container_port: %d\n", cfg.Container.AppContainerPort))
	sb.WriteString(fmt.Sprintf("\tssh_host_port:      %d\n", cfg.Container.SSHHostPort))
	sb.WriteString(fmt.Sprintf("\tssh_container_port: %d\n", cfg.Container.SSHContainerPort))
	sb.WriteString(fmt.Sprintf("\tapp_dir:            %q\n", cfg.Container.AppDir))
	sb.WriteString(fmt.Sprintf("\tapp_mount:          %q\n", cfg.Container.AppMount))
	sb.WriteString(fmt.Sprintf("\tdevice_glob:        %q\n", cfg.Container.DeviceGlob))
	sb.WriteString("}\n")

	sb.WriteString("\ndriver: {\n")
	sb.WriteString(fmt.Sprintf("\tmodule: %q\n", cfg.Driver.Module))
	sb.WriteString(fmt.Sprintf("\trepo:   %q\n", cfg.Driver.Repo))
	if cfg.Driver.Commit != "" {
		sb.WriteString(fmt.Sprintf("\tcommit: %q\n", cfg.Driver.Commit))
	}
	sb.WriteString(fmt.Sprintf("\tbuild_dir:      %q\n", cfg.Driver.BuildDir))
	sb.WriteString(fmt.Sprintf("\tvendor_dir:     %q\n", cfg.Driver.VendorDir))
	sb.WriteString(fmt.Sprintf("\tvendor_archive: %q\n", cfg.Driver.VendorArchive))
	sb.WriteString("}\n")

	sb.WriteString("\ndeps: {\n")
	if len(cfg.Deps.AptPackages) > 0 {
		sb.WriteString("\tapt_packages: [\n")
		for _, pkg := range cfg.Deps.AptPackages {
			sb.WriteString(fmt.Sprintf("\t\t%q,\n", pkg))
		}
		sb.WriteString("\t]\n")
	}
	sb.WriteString(fmt.Sprintf("\trequirements: %q\n", cfg.Deps.Requirements))
	sb.WriteString(fmt.Sprintf("\tvenv:         %q\n", cfg.Deps.Venv))
	sb.WriteString(fmt.Sprintf("\twheel_cache:  %q\n", cfg.Deps.WheelCache))
	sb.WriteString(fmt.Sprintf("\tskip_apt:     %v\n", cfg.Deps.SkipApt))
	sb.WriteString(fmt.Sprintf("\toffline:      %v\n", cfg.Deps.Offline))
	sb.WriteString("}\n")

	sb.WriteString("\nremote: {\n")
	if cfg.Remote.User != "" {
		sb.WriteString(fmt.Sprintf("\tuser: %q\n", cfg.Remote.User))
	}
	if cfg.Remote.Password != "" {
		sb.WriteString(fmt.Sprintf("\tpassword: %q\n", cfg.Remote.Password))
	}
	if cfg.Remote.Pubkey != "" {
		sb.WriteString(fmt.Sprintf("\tpubkey: %q\n", cfg.Remote.Pubkey))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nwifi: {\n")
	if cfg.Wifi.SSID != "" {
		sb.WriteString(fmt.Sprintf("\tssid: %q\n", cfg.Wifi.SSID))
	}
	if cfg.Wifi.Password != "" {
		sb.WriteString(fmt.Sprintf("\tpassword: %q\n", cfg.Wifi.Password))
	}
	sb.WriteString(fmt.Sprintf("\tiface:            %q\n", cfg.Wifi.Interface))
	sb.WriteString(fmt.Sprintf("\tcredentials_file: %q\n", cfg.Wifi.CredentialsFile))
	sb.WriteString("}\n")

	sb.WriteString("\nsupervisor: {\n")
	sb.WriteString(fmt.Sprintf("\tpattern: %q\n", cfg.Supervisor.Pattern))
	sb.WriteString(fmt.Sprintf("\tlaunch:  %q\n", cfg.Supervisor.Launch))
	if cfg.Supervisor.Workdir != "" {
		sb.WriteString(fmt.Sprintf("\tworkdir: %q\n", cfg.Supervisor.Workdir))
	}
	sb.WriteString("}\n")

	return sb.String()
}
