// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wayfinder/cmd/wayfinder/cli"
	"github.com/bureau-foundation/wayfinder/lib/version"
)

// Root builds the complete wayfinder command tree writing through app.
func Root(app *App) *cli.Command {
	return &cli.Command{
		Name: "wayfinder",
		Description: `Wayfinder: explore, map, and survey the worlds of a ticket-protected
game server.

Commands that talk to the server read their endpoint and identity
from the configuration file named by --config or WAYFINDER_CONFIG.`,
		HelpOutput: app.Stderr,
		Subcommands: []*cli.Command{
			app.opsCommand(),
			app.manCommand(),
			app.callCommand(),
			app.worldsCommand(),
			app.mapCommand(),
			app.teleportCommand(),
			app.scanCommand(),
			app.reportCommand(),
			app.versionCommand(),
		},
	}
}

type versionParams struct {
	cli.JSONOutput
}

func (a *App) versionCommand() *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(_ context.Context, _ []string) error {
			if done, err := params.EmitJSON(a.Stdout, version.Current()); done {
				return err
			}
			fmt.Fprintf(a.Stdout, "wayfinder %s\n", version.Full())
			return nil
		},
	}
}
