// Command playtest drives simulated players through a scenario matrix and
// gates nightly content changes on coverage, failure oracles and stored
// baselines.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/playtest/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
