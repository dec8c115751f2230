// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wayfinder/cmd/wayfinder/cli"
	"github.com/bureau-foundation/wayfinder/lib/codec"
	"github.com/bureau-foundation/wayfinder/lib/config"
	"github.com/bureau-foundation/wayfinder/lib/roomgraph"
	"github.com/bureau-foundation/wayfinder/lib/world"
)

func (a *App) mapCommand() *cli.Command {
	return &cli.Command{
		Name:    "map",
		Summary: "Build, query, and inspect room graphs",
		Description: `Room graphs record which room name each exit of each room leads to.
They are built once per world by traversal, cached on disk, and then
used to list rooms across every world that shares the layout.`,
		Subcommands: []*cli.Command{
			a.mapBuildCommand(),
			a.mapRoomsCommand(),
			a.mapInspectCommand(),
		},
	}
}

// engine builds a discovery engine over the session's world client
// using the configured probe labels.
func engine(session *remote, probeOnly, symmetric, resolveArrival bool) (*roomgraph.Engine, error) {
	return roomgraph.New(roomgraph.Config{
		World:              world.New(session.client),
		ProbeLabels:        session.config.Discovery.ProbeLabels,
		ProbeOnly:          probeOnly,
		AssumeSymmetric:    symmetric || session.config.Discovery.AssumeSymmetric,
		ResolveArrivalName: resolveArrival,
		Logger:             session.logger,
	})
}

// graphPath returns explicit, or the world's file in the configured
// graph directory.
func graphPath(cfg *config.Config, explicit, worldID string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if worldID == "" {
		return "", fmt.Errorf("--graph or --world is required")
	}
	if err := cfg.EnsurePaths(); err != nil {
		return "", err
	}
	return cfg.GraphFile(worldID), nil
}

type mapBuildParams struct {
	globalParams
	cli.JSONOutput
	World       string `flag:"world" desc:"world to traverse"`
	Out         string `flag:"out,o" desc:"graph file (default: <graphs>/<world>.wfng)"`
	Compression string `flag:"compression" desc:"payload compression: zstd, lz4, or none" default:"zstd"`
	Probe       bool   `flag:"probe" desc:"probe every label instead of asking rooms for their exits"`
	Symmetric   bool   `flag:"symmetric" desc:"assume every exit has a reverse"`
}

type buildSummary struct {
	World       string `json:"world"`
	Path        string `json:"path"`
	Rooms       int    `json:"rooms"`
	Edges       int    `json:"edges"`
	Compression string `json:"compression"`
	Fingerprint string `json:"fingerprint"`
}

func (a *App) mapBuildCommand() *cli.Command {
	var params mapBuildParams
	return &cli.Command{
		Name:    "build",
		Summary: "Traverse a world and save its room graph",
		Description: `Walk every room reachable from the protagonist of --world and write
the name graph to --out. The traversal asks each room for its exits
when the server supports it and otherwise probes every configured
direction label. The protagonist does not move.`,
		Usage: "wayfinder map build --world ID [--out FILE] [--compression zstd|lz4|none] [--probe] [--symmetric]",
		Examples: []cli.Example{
			{
				Description: "Map world w1 into the graph cache",
				Command:     "wayfinder map build --world w1",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("build", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if params.World == "" {
				return fmt.Errorf("--world is required")
			}
			compression, err := roomgraph.ParseCompression(params.Compression)
			if err != nil {
				return err
			}

			session, err := a.session(ctx, params.globalParams, "map/build")
			if err != nil {
				return err
			}
			defer session.Close()

			path, err := graphPath(session.config, params.Out, params.World)
			if err != nil {
				return err
			}
			builder, err := engine(session, params.Probe, params.Symmetric, false)
			if err != nil {
				return err
			}
			graph, err := builder.Build(ctx, params.World)
			if err != nil {
				return err
			}
			if err := roomgraph.SaveFile(path, graph, compression); err != nil {
				return err
			}

			summary := buildSummary{
				World:       params.World,
				Path:        path,
				Rooms:       graph.Len(),
				Edges:       len(graph.Edges()),
				Compression: compression.String(),
				Fingerprint: graph.Fingerprint(),
			}
			if done, err := params.EmitJSON(a.Stdout, summary); done {
				return err
			}
			fmt.Fprintf(a.Stdout, "mapped %d rooms and %d exits of world %s into %s\n",
				summary.Rooms, summary.Edges, summary.World, summary.Path)
			return nil
		},
	}
}

type mapRoomsParams struct {
	globalParams
	cli.JSONOutput
	World string `flag:"world" desc:"world whose protagonist starts the walk"`
	Graph string `flag:"graph" desc:"graph file (default: <graphs>/<world>.wfng)"`
}

func (a *App) mapRoomsCommand() *cli.Command {
	var params mapRoomsParams
	return &cli.Command{
		Name:    "rooms",
		Summary: "List the rooms reachable from the protagonist",
		Description: `Walk a cached room graph from the protagonist's current room and
resolve each room name to its id in --world. The graph may come from
another world with the same layout; exits the graph lists but the
world lacks are reported and skipped.`,
		Usage: "wayfinder map rooms --world ID [--graph FILE] [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("rooms", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if params.World == "" {
				return fmt.Errorf("--world is required")
			}

			session, err := a.session(ctx, params.globalParams, "map/rooms")
			if err != nil {
				return err
			}
			defer session.Close()

			path, err := graphPath(session.config, params.Graph, params.World)
			if err != nil {
				return err
			}
			cache, err := roomgraph.LoadFile(path)
			if err != nil {
				return err
			}
			walker, err := engine(session, false, false, false)
			if err != nil {
				return err
			}
			rooms, err := walker.Discover(ctx, params.World, cache.Graph)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(a.Stdout, rooms); done {
				return err
			}
			writer := tabwriter.NewWriter(a.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "ROOM\tNAME")
			for _, room := range rooms {
				fmt.Fprintf(writer, "%s\t%s\n", room.ID, room.Name)
			}
			return writer.Flush()
		},
	}
}

type mapInspectParams struct {
	cli.JSONOutput
	Graph      string `flag:"graph" desc:"graph file to inspect"`
	Diagnostic bool   `flag:"cbor" desc:"print the decoded payload in CBOR diagnostic notation"`
}

type inspectSummary struct {
	Path         string           `json:"path"`
	Version      int              `json:"version"`
	Compression  string           `json:"compression"`
	Fingerprint  string           `json:"fingerprint"`
	PayloadBytes int              `json:"payload_bytes"`
	Rooms        []string         `json:"rooms"`
	Edges        []roomgraph.Edge `json:"edges"`
	Diagnostic   string           `json:"diagnostic,omitempty"`
}

func (a *App) mapInspectCommand() *cli.Command {
	var params mapInspectParams
	return &cli.Command{
		Name:    "inspect",
		Summary: "Print the contents of a graph file",
		Usage:   "wayfinder map inspect --graph FILE [--cbor] [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("inspect", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if params.Graph == "" {
				return fmt.Errorf("--graph is required")
			}
			cache, err := roomgraph.LoadFile(params.Graph)
			if err != nil {
				return err
			}

			summary := inspectSummary{
				Path:         params.Graph,
				Version:      cache.Version,
				Compression:  cache.Compression.String(),
				Fingerprint:  cache.Fingerprint,
				PayloadBytes: len(cache.Payload),
				Rooms:        cache.Graph.Names(),
				Edges:        cache.Graph.Edges(),
			}
			if params.Diagnostic {
				notation, err := codec.Diagnose(cache.Payload)
				if err != nil {
					return err
				}
				summary.Diagnostic = notation
			}
			if done, err := params.EmitJSON(a.Stdout, summary); done {
				return err
			}

			fmt.Fprintf(a.Stdout, "format version: %d\n", summary.Version)
			fmt.Fprintf(a.Stdout, "compression:    %s\n", summary.Compression)
			fmt.Fprintf(a.Stdout, "fingerprint:    %s\n", summary.Fingerprint)
			fmt.Fprintf(a.Stdout, "rooms:          %d\n", len(summary.Rooms))
			fmt.Fprintf(a.Stdout, "exits:          %d\n", len(summary.Edges))
			for _, edge := range summary.Edges {
				fmt.Fprintf(a.Stdout, "  %s -[%s]-> %s\n", edge.From, edge.Direction, edge.To)
			}
			if summary.Diagnostic != "" {
				fmt.Fprintf(a.Stdout, "\n%s\n", summary.Diagnostic)
			}
			return nil
		},
	}
}

type teleportParams struct {
	globalParams
	cli.JSONOutput
	World string `flag:"world" desc:"world whose protagonist moves"`
	Room  string `flag:"room" desc:"destination room id"`
}

func (a *App) teleportCommand() *cli.Command {
	var params teleportParams
	return &cli.Command{
		Name:    "teleport",
		Summary: "Move the protagonist to a room and confirm arrival",
		Usage:   "wayfinder teleport --world ID --room ID [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("teleport", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if params.World == "" || params.Room == "" {
				return fmt.Errorf("--world and --room are required")
			}

			session, err := a.session(ctx, params.globalParams, "teleport")
			if err != nil {
				return err
			}
			defer session.Close()

			navigator, err := engine(session, false, false, true)
			if err != nil {
				return err
			}
			arrival, err := navigator.Teleport(ctx, params.World, params.Room)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.Stdout, arrival); done {
				return err
			}
			fmt.Fprintf(a.Stdout, "arrived in %s (%s)\n", arrival.ID, arrival.Name)
			return nil
		},
	}
}
