package main

import (
	"os"

	"github.com/formulary-dev/formulary/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
