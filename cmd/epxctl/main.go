// Command epxctl is the command-line client for the simulation control
// plane (C12): a thin wrapper that hosts the Cobra command tree and exits
// with the process's real exit status.
package main

import (
	"os"

	"github.com/epistemix-platform/simcontrol/internal/cli"
)

func main() {
	if err := cli.Command().Execute(); err != nil {
		os.Exit(1)
	}
}
