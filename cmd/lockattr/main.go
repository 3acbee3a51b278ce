// Command lockattr checks write-once attribute policies, runs write scenarios
// against them, and applies batches of writes to a SQLite store.
package main

import (
	"fmt"
	"os"

	"github.com/simphotonics/lockattr/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
