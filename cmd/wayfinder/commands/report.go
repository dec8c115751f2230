// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wayfinder/cmd/wayfinder/cli"
	"github.com/bureau-foundation/wayfinder/lib/recordstore"
)

type reportParams struct {
	globalParams
	cli.JSONOutput
}

func (a *App) reportCommand() *cli.Command {
	return &cli.Command{
		Name:    "report",
		Summary: "Query the record database",
		Description: `Read what "wayfinder scan" recorded. Flags are compared by their base,
the part before the first colon.`,
		Subcommands: []*cli.Command{
			a.reportStatsCommand(),
			a.reportUsersCommand(),
			a.reportUserCommand(),
			a.reportWhereCommand(),
			a.reportCompareCommand(),
		},
	}
}

// openStore opens the configured record database.
func (a *App) openStore(params reportParams, command string) (*recordstore.Store, error) {
	cfg, err := loadConfig(params.globalParams)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return recordstore.Open(recordstore.Config{
		Path:   cfg.Database,
		Logger: a.logger(params.globalParams, command),
	})
}

// reportCommandFor builds a report subcommand taking exactly arity
// positional arguments.
func (a *App) reportCommandFor(name, summary, usage string, arity int,
	run func(ctx context.Context, store *recordstore.Store, params *reportParams, args []string) error,
) *cli.Command {
	var params reportParams
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams(name, &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != arity {
				return fmt.Errorf("usage: %s", usage)
			}
			store, err := a.openStore(params, "report/"+name)
			if err != nil {
				return err
			}
			defer store.Close()
			return run(ctx, store, &params, args)
		},
	}
}

func (a *App) reportStatsCommand() *cli.Command {
	return a.reportCommandFor("stats", "Count players, worlds, and flag bases",
		"wayfinder report stats [--json]", 0,
		func(ctx context.Context, store *recordstore.Store, params *reportParams, _ []string) error {
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.Stdout, stats); done {
				return err
			}
			fmt.Fprintf(a.Stdout, "players:    %d\n", stats.Users)
			fmt.Fprintf(a.Stdout, "worlds:     %d\n", stats.Worlds)
			fmt.Fprintf(a.Stdout, "flag bases: %d\n", stats.FlagBases)
			return nil
		})
}

func (a *App) reportUsersCommand() *cli.Command {
	return a.reportCommandFor("users", "List profiled players with their flag counts",
		"wayfinder report users [--json]", 0,
		func(ctx context.Context, store *recordstore.Store, params *reportParams, _ []string) error {
			users, err := store.Users(ctx)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.Stdout, users); done {
				return err
			}
			writer := tabwriter.NewWriter(a.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "USERNAME\tNAME\tFILIERE\tFLAGS")
			for _, user := range users {
				name := strings.TrimSpace(user.FirstName + " " + user.LastName)
				fmt.Fprintf(writer, "%s\t%s\t%s\t%d\n", user.Username, name, user.Filiere, user.FlagCount)
			}
			return writer.Flush()
		})
}

func (a *App) reportUserCommand() *cli.Command {
	return a.reportCommandFor("user", "Show a player's profile, flags, and last position",
		"wayfinder report user <name> [--json]", 1,
		func(ctx context.Context, store *recordstore.Store, params *reportParams, args []string) error {
			detail, err := store.UserDetail(ctx, args[0])
			if errors.Is(err, recordstore.ErrUserNotFound) {
				return fmt.Errorf("no records of player %q", args[0])
			}
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.Stdout, detail); done {
				return err
			}

			user := detail.User
			fmt.Fprintf(a.Stdout, "username: %s\n", user.Username)
			if detail.Profiled {
				fmt.Fprintf(a.Stdout, "name:     %s\n", strings.TrimSpace(user.FirstName+" "+user.LastName))
				if user.Email != "" {
					fmt.Fprintf(a.Stdout, "email:    %s\n", user.Email)
				}
				if user.Filiere != "" {
					fmt.Fprintf(a.Stdout, "filiere:  %s\n", user.Filiere)
				}
				if user.Blocked != nil && *user.Blocked {
					fmt.Fprintf(a.Stdout, "blocked:  yes\n")
				}
			} else {
				fmt.Fprintf(a.Stdout, "profile:  none recorded\n")
			}
			if position := detail.LastPosition; position != nil {
				fmt.Fprintf(a.Stdout, "position: %s in world %s\n", describePosition(position), position.WorldID)
			}
			fmt.Fprintf(a.Stdout, "flags:    %d\n", len(detail.Flags))
			for _, flag := range detail.Flags {
				fmt.Fprintf(a.Stdout, "  %s\t%s\n", flag.Date, flag.Flag)
			}
			return nil
		})
}

func (a *App) reportWhereCommand() *cli.Command {
	return a.reportCommandFor("where", "Show the last recorded position of a player",
		"wayfinder report where <name> [--json]", 1,
		func(ctx context.Context, store *recordstore.Store, params *reportParams, args []string) error {
			position, err := store.WhereIs(ctx, args[0])
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.Stdout, position); done {
				if err == nil && position == nil {
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			if position == nil {
				fmt.Fprintf(a.Stdout, "%s has no recorded world\n", args[0])
				return &cli.ExitError{Code: 1}
			}
			fmt.Fprintf(a.Stdout, "%s is in %s (world %s)\n", args[0], describePosition(position), position.WorldID)
			return nil
		})
}

func describePosition(position *recordstore.Position) string {
	if position.Room != "" {
		return fmt.Sprintf("%s [%s]", position.Room, position.Location)
	}
	return position.Location
}

func (a *App) reportCompareCommand() *cli.Command {
	return a.reportCommandFor("compare", "Compare the flag bases of two players",
		"wayfinder report compare <name> <other> [--json]", 2,
		func(ctx context.Context, store *recordstore.Store, params *reportParams, args []string) error {
			comparison, err := store.CompareFlags(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.Stdout, comparison); done {
				return err
			}
			section := func(title string, bases []string) {
				fmt.Fprintf(a.Stdout, "%s (%d)\n", title, len(bases))
				for _, base := range bases {
					fmt.Fprintf(a.Stdout, "  %s\n", base)
				}
			}
			section("only "+comparison.User1, comparison.Ahead)
			section("only "+comparison.User2, comparison.Behind)
			section("both", comparison.Common)
			return nil
		})
}
