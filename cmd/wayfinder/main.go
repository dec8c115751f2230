// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command wayfinder is the command-line client for the game server: it
// authenticates with the ticket protocol, maps world layouts, moves
// protagonists, and records what it finds in a local database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/wayfinder/cmd/wayfinder/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an error with an
		// exit code. Don't print a redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root(commands.NewApp()).Execute(ctx, os.Args[1:])
}
