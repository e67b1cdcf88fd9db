// Command kybernus is the Kybernus CLI.
package main

import (
	"fmt"
	"os"

	"github.com/kybernus/license-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
