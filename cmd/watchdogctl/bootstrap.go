// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"

	"watchdogctl/internal/bootstrap"
	"watchdogctl/internal/config"
	"watchdogctl/internal/run"

	"github.com/spf13/cobra"
)

var (
	// bootstrapProduction skips the development-only steps
	bootstrapProduction bool
	// bootstrapOffline forces cache-only dependency installs
	bootstrapOffline bool

	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Converge the device into a running watchdog deployment",
		Long: `Converge the device into a running watchdog deployment.

Runs every provisioning step in order: wifi join, hostname, connectivity
probe, host packages, host python dependencies, camera driver, container
engine detection, container reconciliation, container packages, container
python dependencies, SSH access, and finally the application itself.

Steps that are already satisfied are left alone, so re-running bootstrap
is the way to repair a drifted device. Network-dependent installs fall
back to the local caches when the device is offline.`,
		Args: cobra.NoArgs,
		RunE: runBootstrap,
	}
)

func init() {
	bootstrapCmd.Flags().BoolVar(&bootstrapProduction, "production", false, "skip development-only steps (driver provisioning, container SSH)")
	bootstrapCmd.Flags().BoolVar(&bootstrapOffline, "offline", false, "skip apt and install python dependencies from the wheel cache only")
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	// Copy the cached config so flag overrides stay scoped to this run.
	cfg := *config.Get()
	if bootstrapOffline {
		cfg.Deps.Offline = true
	}

	orch := bootstrap.New(&cfg, run.New(), bootstrap.Options{
		Production: bootstrapProduction,
		Prompt:     terminalPrompt(),
	})

	sum, err := orch.Run(cmd.Context())
	renderSummary(cmd.OutOrStdout(), sum)
	if err != nil {
		renderGuide(err)
		fmt.Fprintf(os.Stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
		// Everything worth saying is already on screen.
		return &ExitError{Code: 1}
	}

	w := cmd.OutOrStdout()
	if warns := sum.Warnings(); len(warns) > 0 {
		fmt.Fprintf(w, "\n%s Device converged with %d warning(s)\n", WarningStyle.Render("!"), len(warns))
	} else {
		fmt.Fprintf(w, "\n%s Device converged\n", SuccessStyle.Render("✓"))
	}
	fmt.Fprintf(w, "Run %s to inspect the deployment.\n", CmdStyle.Render("watchdogctl status"))
	return nil
}

// renderSummary prints one line per executed step. A nil summary means the
// run never started (for example when another bootstrap holds the lock).
func renderSummary(w io.Writer, sum *bootstrap.Summary) {
	if sum == nil {
		return
	}
	for _, res := range sum.Results {
		switch res.Status {
		case bootstrap.StatusOK:
			fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("✓"), res.Name)
		case bootstrap.StatusSkipped:
			fmt.Fprintf(w, "%s %s %s\n", VerboseStyle.Render("-"), res.Name, VerboseStyle.Render("("+res.Reason+")"))
		case bootstrap.StatusWarned:
			fmt.Fprintf(w, "%s %s: %v\n", WarningStyle.Render("!"), res.Name, res.Err)
		case bootstrap.StatusFailed:
			fmt.Fprintf(w, "%s %s: %v\n", ErrorStyle.Render("✗"), res.Name, res.Err)
		}
	}
}
