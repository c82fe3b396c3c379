// Package main is the entry point for the premium-rater CLI.
package main

import (
	"os"

	"premium-rater/cmd/cli/cmd"
	"premium-rater/internal/logging"
)

func main() {
	err := cmd.Execute()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
