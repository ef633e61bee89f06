package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/reneee98/layers/internal/infrastructure/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(stderr io.Writer) int {
	cli.Version, cli.Commit, cli.Date = version, commit, date
	cli.RootCmd.Version = version

	err := cli.Execute()
	if err == nil {
		return 0
	}
	var cliErr *cli.CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Hint != "" {
			fmt.Fprintf(stderr, "Hint: %s\n", cliErr.Hint)
		}
		return cliErr.ExitCode
	}
	return 1
}
