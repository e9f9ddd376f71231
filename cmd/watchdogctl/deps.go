// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"watchdogctl/internal/config"
	"watchdogctl/internal/deps"
	"watchdogctl/internal/run"

	"github.com/spf13/cobra"
)

var (
	depsCmd = &cobra.Command{
		Use:   "deps",
		Short: "Manage python dependency caches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	depsSeedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Fill the wheel cache for offline installs",
		Long: `Fill the wheel cache for offline installs.

Downloads every wheel the requirements file names into the configured
cache directory. Do this while the device still has network access;
bootstrap falls back to this cache whenever pip cannot reach an index.`,
		Args: cobra.NoArgs,
		RunE: runDepsSeed,
	}
)

func init() {
	depsCmd.AddCommand(depsSeedCmd)
}

func runDepsSeed(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()
	spec := deps.PipSpec{
		Requirements: cfg.Deps.Requirements,
		Venv:         cfg.Deps.Venv,
		WheelCache:   cfg.Deps.WheelCache,
	}
	if err := deps.SeedWheels(cmd.Context(), run.New(), spec); err != nil {
		renderGuide(err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wheel cache seeded at %s\n", SuccessStyle.Render("✓"), spec.WheelCache)
	return nil
}
