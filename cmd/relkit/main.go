// Package main is the entry point for the relkit CLI.
package main

import (
	"os"

	"github.com/lan-dot-party/relkit/cmd/relkit/cmd"
	"github.com/lan-dot-party/relkit/internal/logger"
)

func main() {
	// Initialize default logger (will be reconfigured after config is loaded)
	logger.InitDefault()
	defer logger.Sync()

	if err := cmd.Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}
