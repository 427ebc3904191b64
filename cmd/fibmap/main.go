// Package main provides fibmap, an interactive inspector for fibmap tables.
package main

import (
	"os"

	"github.com/calvinalkan/fibmap/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Stdout))
}
