// Package main provides the entry point for fbekeyd: the daemon that owns
// the on-disk file-based-encryption key hierarchy and the per-user
// directory lifecycle built on top of it. The `server` subcommand runs the
// admin HTTP surface (health/ready/metrics); every key and user lifecycle
// operation is reached through the other subcommands, never over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func main() {
	cmd := &cli.Command{
		Name:     "fbekeyd",
		Usage:    "file-based-encryption key management daemon",
		Version:  version,
		Commands: getCommands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
