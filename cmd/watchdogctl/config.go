// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"watchdogctl/internal/config"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// configShowFormat selects machine-readable output for config show
var configShowFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage watchdogctl configuration",
	Long: `Manage watchdogctl configuration.

Configuration is stored in:
  - Linux: ~/.config/watchdogctl/config.cue
  - macOS: ~/Library/Application Support/watchdogctl/config.cue

Every value can also be overridden through the WATCHDOG_* environment
variables; the file holds what should survive a reboot.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.OutOrStdout())
		},
	}
	showCmd.Flags().StringVar(&configShowFormat, "format", "", "output format: toml or json (default is styled text)")
	configCmd.AddCommand(showCmd)

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfigFile(cmd.OutOrStdout())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfigPath(cmd.OutOrStdout())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.OutOrStdout(), args[0], args[1])
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(config.Get()))
			return nil
		},
	})
}

func showConfig(w io.Writer) error {
	cfg := config.Get()

	switch configShowFormat {
	case "":
		renderConfigText(w, cfg)
		return nil
	case "toml":
		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config as toml: %w", err)
		}
		fmt.Fprint(w, string(out))
		return nil
	case "json":
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal config as json: %w", err)
		}
		fmt.Fprintln(w, string(out))
		return nil
	default:
		return fmt.Errorf("unknown format %q: must be toml or json", configShowFormat)
	}
}

// renderConfigText writes the styled human listing. Secrets are shown as
// set/unset only; the machine formats carry them verbatim for piping into
// files.
func renderConfigText(w io.Writer, cfg *config.Config) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if path := config.ConfigFilePath(); path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	if cfg.Hostname != "" {
		fmt.Fprintf(w, "%s: %s\n\n", keyStyle.Render("hostname"), valueStyle.Render(cfg.Hostname))
	}

	fmt.Fprintf(w, "%s:\n", keyStyle.Render("engine"))
	fmt.Fprintf(w, "  binary: %s\n", valueStyle.Render(cfg.Engine.Binary))

	fmt.Fprintf(w, "\n%s:\n", keyStyle.Render("container"))
	fmt.Fprintf(w, "  name: %s\n", valueStyle.Render(string(cfg.Container.Name)))
	fmt.Fprintf(w, "  image: %s\n", valueStyle.Render(string(cfg.Container.Image)))
	fmt.Fprintf(w, "  restart_policy: %s\n", valueStyle.Render(string(cfg.Container.RestartPolicy)))
	fmt.Fprintf(w, "  app_port: %s\n", valueStyle.Render(fmt.Sprintf("%d -> %d", cfg.Container.AppHostPort, cfg.Container.AppContainerPort)))
	fmt.Fprintf(w, "  ssh_port: %s\n", valueStyle.Render(fmt.Sprintf("%d -> %d", cfg.Container.SSHHostPort, cfg.Container.SSHContainerPort)))
	fmt.Fprintf(w, "  app_dir: %s\n", valueStyle.Render(cfg.Container.AppDir))
	fmt.Fprintf(w, "  app_mount: %s\n", valueStyle.Render(cfg.Container.AppMount))
	fmt.Fprintf(w, "  device_glob: %s\n", valueStyle.Render(cfg.Container.DeviceGlob))

	fmt.Fprintf(w, "\n%s:\n", keyStyle.Render("driver"))
	fmt.Fprintf(w, "  module: %s\n", valueStyle.Render(cfg.Driver.Module))
	fmt.Fprintf(w, "  repo: %s\n", valueStyle.Render(cfg.Driver.Repo))
	fmt.Fprintf(w, "  build_dir: %s\n", valueStyle.Render(cfg.Driver.BuildDir))
	fmt.Fprintf(w, "  vendor_dir: %s\n", valueStyle.Render(cfg.Driver.VendorDir))
	fmt.Fprintf(w, "  vendor_archive: %s\n", valueStyle.Render(cfg.Driver.VendorArchive))

	fmt.Fprintf(w, "\n%s:\n", keyStyle.Render("deps"))
	fmt.Fprintf(w, "  apt_packages: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Deps.AptPackages)))
	fmt.Fprintf(w, "  requirements: %s\n", valueStyle.Render(cfg.Deps.Requirements))
	fmt.Fprintf(w, "  venv: %s\n", valueStyle.Render(cfg.Deps.Venv))
	fmt.Fprintf(w, "  wheel_cache: %s\n", valueStyle.Render(cfg.Deps.WheelCache))
	fmt.Fprintf(w, "  skip_apt: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Deps.SkipApt)))
	fmt.Fprintf(w, "  offline: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Deps.Offline)))

	fmt.Fprintf(w, "\n%s:\n", keyStyle.Render("remote"))
	fmt.Fprintf(w, "  user: %s\n", valueStyle.Render(cfg.Remote.User))
	fmt.Fprintf(w, "  password: %s\n", SubtitleStyle.Render(maskSecret(cfg.Remote.Password)))
	fmt.Fprintf(w, "  pubkey: %s\n", valueStyle.Render(cfg.Remote.Pubkey))

	fmt.Fprintf(w, "\n%s:\n", keyStyle.Render("wifi"))
	fmt.Fprintf(w, "  ssid: %s\n", valueStyle.Render(cfg.Wifi.SSID))
	fmt.Fprintf(w, "  password: %s\n", SubtitleStyle.Render(maskSecret(cfg.Wifi.Password)))
	fmt.Fprintf(w, "  iface: %s\n", valueStyle.Render(cfg.Wifi.Interface))
	fmt.Fprintf(w, "  credentials_file: %s\n", valueStyle.Render(cfg.Wifi.CredentialsFile))

	fmt.Fprintf(w, "\n%s:\n", keyStyle.Render("supervisor"))
	fmt.Fprintf(w, "  pattern: %s\n", valueStyle.Render(cfg.Supervisor.Pattern))
	fmt.Fprintf(w, "  launch: %s\n", valueStyle.Render(cfg.Supervisor.Launch))
	fmt.Fprintf(w, "  workdir: %s\n", valueStyle.Render(cfg.Supervisor.Workdir))
}

func maskSecret(v string) string {
	if v == "" {
		return "(unset)"
	}
	return "(set)"
}

func initConfigFile(w io.Writer) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfgPath := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Fprintf(w, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), cfgPath)
		return nil
	}
	if err := config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	fmt.Fprintf(w, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), cfgPath)
	return nil
}

func showConfigPath(w io.Writer) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(w, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}

func setConfigValue(w io.Writer, key, value string) error {
	cfg := config.Get()

	switch key {
	case "hostname":
		cfg.Hostname = value

	case "engine.binary":
		if value == "" {
			return fmt.Errorf("engine.binary cannot be empty")
		}
		cfg.Engine.Binary = value

	case "container.name":
		name := config.ContainerName(value)
		if ok, errs := name.IsValid(); !ok {
			return fmt.Errorf("invalid container.name: %w", errors.Join(errs...))
		}
		cfg.Container.Name = name

	case "container.image":
		image := config.ImageRef(value)
		if ok, errs := image.IsValid(); !ok {
			return fmt.Errorf("invalid container.image: %w", errors.Join(errs...))
		}
		cfg.Container.Image = image

	case "wifi.ssid":
		cfg.Wifi.SSID = value

	case "wifi.password":
		cfg.Wifi.Password = value

	case "wifi.iface":
		cfg.Wifi.Interface = value

	case "remote.user":
		cfg.Remote.User = value

	case "deps.offline":
		cfg.Deps.Offline = value == "true" || value == "1"

	case "deps.skip_apt":
		cfg.Deps.SkipApt = value == "true" || value == "1"

	case "supervisor.pattern":
		cfg.Supervisor.Pattern = value

	case "supervisor.launch":
		cfg.Supervisor.Launch = value

	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: hostname, engine.binary, container.name, container.image, wifi.ssid, wifi.password, wifi.iface, remote.user, deps.offline, deps.skip_apt, supervisor.pattern, supervisor.launch", key)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	shown := value
	if key == "wifi.password" {
		shown = "(hidden)"
	}
	fmt.Fprintf(w, "%s Set %s = %s\n", SuccessStyle.Render("✓"), key, shown)
	return nil
}
