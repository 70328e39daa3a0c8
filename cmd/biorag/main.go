// Package main provides the entry point for the biorag CLI.
package main

import (
	"os"

	"github.com/biorag/biorag/cmd/biorag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
