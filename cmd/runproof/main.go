// Command runproof diffs, asserts and replays recorded AI agent runs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/runproof/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
