// Package main provides the entry point for the docrewind CLI.
package main

import (
	"os"

	"github.com/randalmurphal/docrewind/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
