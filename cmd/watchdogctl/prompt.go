// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"watchdogctl/internal/remote"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

// terminalPrompt returns a password prompt bound to the controlling terminal,
// or nil when stdin is not a terminal. A nil prompt tells the remote access
// provisioner that interactive input is unavailable, so it falls back to the
// configured or key-only account resolution.
func terminalPrompt() remote.PromptFunc {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return func(account string) (string, error) {
		var password string
		prompt := &survey.Password{
			Message: fmt.Sprintf("Password for container account %q:", account),
		}
		if err := survey.AskOne(prompt, &password); err != nil {
			return "", fmt.Errorf("password prompt: %w", err)
		}
		return password, nil
	}
}
