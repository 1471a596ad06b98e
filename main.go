// BlackDropbox - command-line client and terminal dashboard for the
// BlackDropbox cloud file store.
//
// - No args + interactive terminal → dashboard
// - No args + no terminal → CLI help
// - Subcommands/flags → CLI mode
package main

import (
	"os"

	"golang.org/x/term"

	"github.com/blackdropbox/blackdropbox/internal/cli"
	"github.com/blackdropbox/blackdropbox/internal/version"
)

func main() {
	cli.Version = version.Version
	cli.BuildTime = version.BuildTime

	args := os.Args[1:]
	if len(args) == 0 && term.IsTerminal(int(os.Stdin.Fd())) {
		args = []string{"dashboard"}
	}

	if err := cli.ExecuteArgs(args); err != nil {
		os.Exit(1)
	}
}
