// SPDX-License-Identifier: MPL-2.0

// watchdogctl provisions and runs the watchdog room monitor on an edge
// device. See cmd/watchdogctl for the command implementations.
package main

import cmd "watchdogctl/cmd/watchdogctl"

func main() {
	cmd.Execute()
}
