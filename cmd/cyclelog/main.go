// Command cyclelog records workflow cycles, situations and answers and
// derives time statistics from them.
package main

import (
	"context"
	"os"

	"github.com/roach88/cyclelog/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
