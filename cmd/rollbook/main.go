// Command rollbook maintains the rollbook database and serves it to a
// presentation process over stdin/stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/rollbook/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return
	}

	// An ExitError was already reported by its command. Anything else is a
	// flag or argument error from cobra.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}
