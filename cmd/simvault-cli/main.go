// Package main provides the entry point for simvault-cli.
//
// simvault-cli is the maintenance tool for SimVault data directories:
// inspecting save state, verifying checksums, managing the transaction
// journal and backups, and serving engine metrics.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/simvault-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
