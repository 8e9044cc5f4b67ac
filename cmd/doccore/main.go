// Command doccore compiles, builds and drives reactive documents.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/doccore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
