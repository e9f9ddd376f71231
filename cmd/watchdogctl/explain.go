// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"watchdogctl/internal/issue"

	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain [issue]",
	Short: "Show the recovery guide for a provisioning failure",
	Long: `Show the recovery guide for a provisioning failure.

Fatal bootstrap errors reference a guide by name. Run explain with that
name to read it again, or with no argument to list every guide.

Examples:
  watchdogctl explain
  watchdogctl explain apt-install-failed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listGuides(cmd.OutOrStdout())
	}

	id, ok := issue.ParseId(args[0])
	if !ok {
		return fmt.Errorf("unknown issue %q\nRun 'watchdogctl explain' to list the available guides", args[0])
	}

	rendered, err := issue.Get(id).Render("dark")
	if err != nil {
		return fmt.Errorf("failed to render guide %s: %w", id, err)
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

func listGuides(w io.Writer) error {
	guides := issue.Values()
	slices.SortFunc(guides, func(a, b *issue.Issue) int { return int(a.Id()) - int(b.Id()) })

	fmt.Fprintln(w, TitleStyle.Render("Failure guides"))
	fmt.Fprintln(w)
	for _, g := range guides {
		fmt.Fprintf(w, "  %s  %s\n", CmdStyle.Render(g.Id().String()), guideTitle(g))
	}
	fmt.Fprintf(w, "\nRun %s to read one.\n", CmdStyle.Render("watchdogctl explain <issue>"))
	return nil
}

// guideTitle extracts the top-level heading from a guide's markdown.
func guideTitle(g *issue.Issue) string {
	for _, line := range strings.Split(string(g.MarkdownMsg()), "\n") {
		if title, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSuffix(strings.TrimSpace(title), "!")
		}
	}
	return ""
}
