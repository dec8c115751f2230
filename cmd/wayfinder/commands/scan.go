// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wayfinder/cmd/wayfinder/cli"
	"github.com/bureau-foundation/wayfinder/lib/recordstore"
	"github.com/bureau-foundation/wayfinder/lib/scan"
	"github.com/bureau-foundation/wayfinder/lib/world"
)

type scanParams struct {
	globalParams
	cli.JSONOutput
	Workers    int  `flag:"workers" desc:"parallel sessions (default: scan.workers from the configuration)"`
	StripEmail bool `flag:"strip-email" desc:"do not record email addresses"`
	DryRun     bool `flag:"dry-run" desc:"scan without writing to the record database"`
}

type scanFailure struct {
	WorldID string `json:"world_id"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

type scanReport struct {
	Listed    int                  `json:"listed"`
	Unclaimed int                  `json:"unclaimed"`
	Users     int                  `json:"users"`
	Worlds    int                  `json:"worlds"`
	Flags     int                  `json:"flags"`
	Stored    *scan.PersistSummary `json:"stored,omitempty"`
	Failures  []scanFailure        `json:"failures"`
}

func (a *App) scanCommand() *cli.Command {
	var params scanParams
	return &cli.Command{
		Name:    "scan",
		Summary: "Collect players, positions, and flags from every world",
		Description: `Read the username, position, and data collection of every world on the
server and record them in the database. Worlds are read in parallel,
one authenticated session per worker. Worlds that fail are listed and
make the command exit with status 1; everything else is still
recorded.`,
		Usage: "wayfinder scan [--workers N] [--strip-email] [--dry-run] [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("scan", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			logger := a.logger(params.globalParams, "scan")
			cfg, err := loadConfig(params.globalParams)
			if err != nil {
				return err
			}
			workers := params.Workers
			if workers <= 0 {
				workers = cfg.Scan.Workers
			}

			var store *recordstore.Store
			if !params.DryRun {
				if err := cfg.EnsurePaths(); err != nil {
					return err
				}
				store, err = recordstore.Open(recordstore.Config{Path: cfg.Database, Logger: logger})
				if err != nil {
					return err
				}
				defer store.Close()
			}

			sessions, err := a.connect(cfg, logger)
			if err != nil {
				return err
			}
			defer sessions.Close()

			scanner, err := scan.New(scan.Config{
				Dial: func(ctx context.Context) (scan.Session, error) {
					return sessions.dial(ctx)
				},
				Workers:    workers,
				StripEmail: params.StripEmail || cfg.Scan.StripEmail,
				Progress: func(done, total int) {
					logger.Debug("scan progress", "done", done, "total", total)
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			result, err := scanner.Run(ctx)
			if err != nil {
				return err
			}

			report := scanReport{
				Listed:    result.Listed,
				Unclaimed: result.Unclaimed,
				Users:     len(result.Users),
				Worlds:    len(result.Worlds),
				Flags:     len(result.Flags),
				Failures:  []scanFailure{},
			}
			for _, failure := range result.Failures {
				report.Failures = append(report.Failures, scanFailure{
					WorldID: failure.WorldID,
					Stage:   failure.Stage,
					Error:   failure.Err.Error(),
				})
			}
			if store != nil {
				stored, err := result.Persist(ctx, store)
				if err != nil {
					return err
				}
				report.Stored = &stored
			}

			if done, err := params.EmitJSON(a.Stdout, report); done {
				if err != nil {
					return err
				}
			} else {
				writeScanReport(a, report)
			}
			if len(report.Failures) > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func writeScanReport(a *App, report scanReport) {
	fmt.Fprintf(a.Stdout, "worlds listed:    %d (%d unclaimed)\n", report.Listed, report.Unclaimed)
	fmt.Fprintf(a.Stdout, "players:          %d\n", report.Users)
	fmt.Fprintf(a.Stdout, "worlds recorded:  %d\n", report.Worlds)
	fmt.Fprintf(a.Stdout, "flags:            %d\n", report.Flags)
	if report.Stored != nil {
		fmt.Fprintf(a.Stdout, "stored:           %d new players, %d new worlds, %d moved, %d new flags\n",
			report.Stored.UsersAdded, report.Stored.WorldsAdded, report.Stored.WorldsUpdated, report.Stored.FlagsAdded)
	}
	if len(report.Failures) == 0 {
		return
	}
	fmt.Fprintf(a.Stdout, "\n%d worlds failed:\n", len(report.Failures))
	writer := tabwriter.NewWriter(a.Stdout, 2, 0, 3, ' ', 0)
	for _, failure := range report.Failures {
		fmt.Fprintf(writer, "  %s\t%s\t%s\n", failure.WorldID, failure.Stage, failure.Error)
	}
	writer.Flush()
}

type worldsParams struct {
	globalParams
	cli.JSONOutput
	User string `flag:"user" desc:"list only worlds whose protagonist is this player"`
}

func (a *App) worldsCommand() *cli.Command {
	var params worldsParams
	return &cli.Command{
		Name:    "worlds",
		Summary: "List the server's worlds",
		Usage:   "wayfinder worlds [--user NAME] [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("worlds", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			session, err := a.session(ctx, params.globalParams, "worlds")
			if err != nil {
				return err
			}
			defer session.Close()

			client := world.New(session.client)
			var ids []string
			if params.User != "" {
				ids, err = client.WorldsOf(ctx, params.User)
			} else {
				ids, err = client.ListWorlds(ctx)
			}
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.Stdout, ids); done {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.Stdout, id)
			}
			return nil
		},
	}
}
