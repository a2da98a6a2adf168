// Command vidindex indexes video ledger events into a queryable SQLite store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vidindex/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
