// Command speller runs the row/column flash speller engine.
package main

import (
	"context"
	"os"

	"github.com/roach88/speller/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
