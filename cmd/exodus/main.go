package main

import (
	"fmt"
	"os"

	"github.com/tcclabs/exodus/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Subcommands run with SilenceErrors, so this is the only place
		// the error is printed.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
