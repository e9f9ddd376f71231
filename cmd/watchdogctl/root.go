// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for watchdogctl.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"watchdogctl/internal/config"
	"watchdogctl/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "watchdogctl",
		Short: "Provision and run the watchdog room monitor on an edge device",
		Long: TitleStyle.Render("watchdogctl") + SubtitleStyle.Render(" - edge device bootstrap for the watchdog room monitor") + `

watchdogctl reconciles a Jetson-class device into a working watchdog
deployment: it joins the network, installs host dependencies, provisions
the virtual camera driver, and runs the application inside an Ubuntu
container with SSH access for development. Every step is idempotent, so
the same command converges a fresh device and repairs a drifted one.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Put the application under /opt/watchdog/app (or set WATCHDOG_CONTAINER_APP_DIR)
  2. Run: watchdogctl bootstrap
  3. Check the result with: watchdogctl status

` + SubtitleStyle.Render("Examples:") + `
  watchdogctl bootstrap               Converge the device end to end
  watchdogctl bootstrap --production  Skip the development-only steps
  watchdogctl status --ssh            Show state and probe SSH access
  watchdogctl shell                   Open a shell inside the container
  watchdogctl deps seed               Fill the wheel cache for offline runs
  watchdogctl config show             Show current configuration`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/watchdogctl/config.cue)")

	// Add subcommands
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(explainCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig reads in config file and ENV variables if set.
func initRootConfig() {
	// Route the slog calls of the internal packages through a styled
	// handler. Verbose mode unlocks the debug level.
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	slog.SetDefault(slog.New(logger))

	// Set custom config file path if provided via --config flag
	if cfgFile != "" {
		config.SetConfigFilePathOverride(cfgFile)
	}

	// Load configuration; commands read the cached result via config.Get().
	if _, err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderGuide writes the issue guide linked to err, if any, to stderr.
// The styled card comes before the plain error that cobra prints on return.
func renderGuide(err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}
	guide := ae.Guide()
	if guide == nil {
		return
	}
	rendered, renderErr := guide.Render("dark")
	if renderErr != nil {
		slog.Warn("failed to render issue guide", "issueID", guide.Id(), "error", renderErr)
		return
	}
	fmt.Fprint(os.Stderr, rendered)
}
