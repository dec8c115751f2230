// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/wayfinder/lib/jsonrpc"
)

// DefaultProbeLabels is the label set tried when a server cannot list a
// room's directions.
var DefaultProbeLabels = []string{"N", "W", "S", "E", "OUT", "IN", "UP", "DOWN"}

// opposites pairs labels for AssumeSymmetric. Labels without an entry
// are never inferred.
var opposites = map[string]string{
	"N": "S", "S": "N",
	"W": "E", "E": "W",
	"UP": "DOWN", "DOWN": "UP",
	"IN": "OUT", "OUT": "IN",
}

// World is the view of one game server the engine needs. *world.Client
// implements it.
type World interface {
	Location(ctx context.Context, worldID string) (string, error)
	RoomName(ctx context.Context, worldID, room string) (string, error)
	RoomNeighbor(ctx context.Context, worldID, room, direction string) (string, error)
	Move(ctx context.Context, worldID, room string) (json.RawMessage, error)
}

// DirectionLister is implemented by worlds that can list a room's exit
// labels in one call. *world.Client implements it.
type DirectionLister interface {
	RoomDirections(ctx context.Context, worldID, room string) ([]string, error)
}

// Config holds configuration for creating an Engine.
type Config struct {
	World World

	// ProbeLabels replaces DefaultProbeLabels.
	ProbeLabels []string

	// ProbeOnly disables room.directions even when World implements
	// DirectionLister.
	ProbeOnly bool

	// AssumeSymmetric skips the reverse of the direction a room was
	// entered by and records the reverse edge instead. It saves one
	// call per room and is wrong for one-way exits.
	AssumeSymmetric bool

	// ResolveArrivalName makes Teleport fetch the destination's name.
	ResolveArrivalName bool

	// Logger is used for structured logging. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Engine builds, walks, and navigates room graphs. Each call works on
// one world and is sequential; an Engine holds no per-call state and
// may serve several goroutines if its World may.
type Engine struct {
	world              World
	lister             DirectionLister
	probeLabels        []string
	assumeSymmetric    bool
	resolveArrivalName bool
	logger             *slog.Logger
}

// New returns an Engine.
func New(config Config) (*Engine, error) {
	if config.World == nil {
		return nil, fmt.Errorf("roomgraph: World is required")
	}
	labels := config.ProbeLabels
	if len(labels) == 0 {
		labels = DefaultProbeLabels
	}
	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		if label == "" {
			return nil, fmt.Errorf("roomgraph: ProbeLabels contains an empty label")
		}
		if seen[label] {
			return nil, fmt.Errorf("roomgraph: ProbeLabels contains %q twice", label)
		}
		seen[label] = true
	}

	var lister DirectionLister
	if !config.ProbeOnly {
		lister, _ = config.World.(DirectionLister)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		world:              config.World,
		lister:             lister,
		probeLabels:        append([]string(nil), labels...),
		assumeSymmetric:    config.AssumeSymmetric,
		resolveArrivalName: config.ResolveArrivalName,
		logger:             logger,
	}, nil
}

// frame is one pending room of the depth-first build.
type frame struct {
	room string

	// cameFrom and entry describe how the room was reached: from room
	// cameFrom by direction entry. Both are empty for the start room.
	cameFrom string
	entry    string
}

// buildState is the per-call state of Build.
type buildState struct {
	worldID       string
	graph         *NameGraph
	names         map[string]string
	useDirections bool
}

// Build explores worldID from the protagonist's location and returns
// the name graph of every reachable room. Remote errors other than an
// unsupported room.directions abort the build.
func (e *Engine) Build(ctx context.Context, worldID string) (*NameGraph, error) {
	start, err := e.world.Location(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("roomgraph: locating start of %s: %w", worldID, err)
	}
	if start == "" {
		return nil, fmt.Errorf("roomgraph: world %s reported an empty location", worldID)
	}

	state := &buildState{
		worldID:       worldID,
		graph:         NewNameGraph(),
		names:         make(map[string]string),
		useDirections: e.lister != nil,
	}
	visited := make(map[string]bool)
	stack := []frame{{room: start}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current.room] {
			continue
		}
		visited[current.room] = true

		name, err := e.name(ctx, state, current.room)
		if err != nil {
			return nil, err
		}
		state.graph.AddRoom(name)

		labels, err := e.labels(ctx, state, current.room)
		if err != nil {
			return nil, err
		}

		// Push in reverse so labels are explored in listed order.
		var pending []frame
		for _, label := range labels {
			if e.assumeSymmetric && current.entry != "" && label == opposites[current.entry] {
				e.record(state, name, label, state.names[current.cameFrom])
				continue
			}

			neighbor, err := e.world.RoomNeighbor(ctx, worldID, current.room, label)
			if err != nil {
				return nil, fmt.Errorf("roomgraph: neighbor %s of %s in %s: %w", label, current.room, worldID, err)
			}
			if neighbor == "" {
				continue
			}
			neighborName, err := e.name(ctx, state, neighbor)
			if err != nil {
				return nil, err
			}
			e.record(state, name, label, neighborName)
			if !visited[neighbor] {
				pending = append(pending, frame{room: neighbor, cameFrom: current.room, entry: label})
			}
		}
		for index := len(pending) - 1; index >= 0; index-- {
			stack = append(stack, pending[index])
		}
	}

	e.logger.Info("room graph built",
		"world_id", worldID,
		"rooms", state.graph.Len(),
		"room_ids", len(visited),
		"directions_listed", state.useDirections,
	)
	return state.graph, nil
}

// name returns the normalized display name of room, asking the world
// at most once per id.
func (e *Engine) name(ctx context.Context, state *buildState, room string) (string, error) {
	if name, ok := state.names[room]; ok {
		return name, nil
	}
	name, err := e.world.RoomName(ctx, state.worldID, room)
	if err != nil {
		return "", fmt.Errorf("roomgraph: name of %s in %s: %w", room, state.worldID, err)
	}
	name = NormalizeName(name)
	state.names[room] = name
	return name, nil
}

// labels returns the exits to try from room. The first remote error
// from room.directions switches the rest of the build to probing.
func (e *Engine) labels(ctx context.Context, state *buildState, room string) ([]string, error) {
	if !state.useDirections {
		return e.probeLabels, nil
	}
	labels, err := e.lister.RoomDirections(ctx, state.worldID, room)
	if err == nil {
		return labels, nil
	}
	var remoteError *jsonrpc.RemoteError
	if !errors.As(err, &remoteError) {
		return nil, fmt.Errorf("roomgraph: directions of %s in %s: %w", room, state.worldID, err)
	}
	e.logger.Warn("room.directions unavailable, probing direction labels",
		"world_id", state.worldID,
		"room", room,
		"error", err,
	)
	state.useDirections = false
	return e.probeLabels, nil
}

func (e *Engine) record(state *buildState, from, direction, to string) {
	previous, _ := state.graph.Neighbor(from, direction)
	switch state.graph.Record(from, direction, to) {
	case EdgeOverwritten:
		e.logger.Warn("room graph topology drift",
			"world_id", state.worldID,
			"room", from,
			"direction", direction,
			"previous", previous,
			"current", to,
		)
	case EdgeAdded:
		e.logger.Debug("edge recorded", "room", from, "direction", direction, "neighbor", to)
	}
}

// Discover lists the rooms of worldID reachable over graph, starting at
// the protagonist's location. It makes one room.neighbor call per graph
// edge leading to a name not yet seen in this world. The start room is
// always the first entry.
func (e *Engine) Discover(ctx context.Context, worldID string, graph *NameGraph) ([]Room, error) {
	startID, err := e.world.Location(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("roomgraph: locating start of %s: %w", worldID, err)
	}
	startName, err := e.world.RoomName(ctx, worldID, startID)
	if err != nil {
		return nil, fmt.Errorf("roomgraph: name of %s in %s: %w", startID, worldID, err)
	}
	startName = NormalizeName(startName)
	rooms := []Room{{ID: startID, Name: startName}}

	if !graph.Has(startName) {
		e.logger.Warn("start room not in graph, graph does not apply to this world",
			"world_id", worldID,
			"room", startID,
			"name", startName,
		)
		return rooms, nil
	}

	ids := map[string]string{startName: startID}
	queue := []string{startName}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := queue[0]
		queue = queue[1:]

		for _, label := range graph.Directions(name) {
			neighborName, _ := graph.Neighbor(name, label)
			if _, seen := ids[neighborName]; seen {
				continue
			}
			neighborID, err := e.world.RoomNeighbor(ctx, worldID, ids[name], label)
			if err != nil {
				return nil, fmt.Errorf("roomgraph: neighbor %s of %s in %s: %w", label, ids[name], worldID, err)
			}
			if neighborID == "" {
				e.logger.Warn("graph edge not confirmed by world",
					"world_id", worldID,
					"room", name,
					"direction", label,
					"expected", neighborName,
				)
				continue
			}
			ids[neighborName] = neighborID
			rooms = append(rooms, Room{ID: neighborID, Name: neighborName})
			queue = append(queue, neighborName)
		}
	}

	e.logger.Info("rooms discovered", "world_id", worldID, "rooms", len(rooms), "graph_rooms", graph.Len())
	return rooms, nil
}

// Teleport moves the protagonist of worldID to target and confirms the
// move by reading the location back. Name is set only when the engine
// resolves arrival names.
func (e *Engine) Teleport(ctx context.Context, worldID, target string) (Room, error) {
	if _, err := e.world.Move(ctx, worldID, target); err != nil {
		return Room{}, fmt.Errorf("roomgraph: moving to %s in %s: %w", target, worldID, err)
	}
	actual, err := e.world.Location(ctx, worldID)
	if err != nil {
		return Room{}, fmt.Errorf("roomgraph: confirming move in %s: %w", worldID, err)
	}
	if actual != target {
		return Room{}, &NavigationError{WorldID: worldID, Expected: target, Actual: actual}
	}

	arrived := Room{ID: actual}
	if e.resolveArrivalName {
		name, err := e.world.RoomName(ctx, worldID, actual)
		if err != nil {
			return Room{}, fmt.Errorf("roomgraph: name of %s in %s: %w", actual, worldID, err)
		}
		arrived.Name = NormalizeName(name)
	}
	e.logger.Info("teleported", "world_id", worldID, "room", arrived.ID, "name", arrived.Name)
	return arrived, nil
}

// NavigationError reports a move the world did not carry out.
type NavigationError struct {
	WorldID  string
	Expected string
	Actual   string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("roomgraph: move in world %s did not arrive: expected room %s, protagonist is in %s",
		e.WorldID, e.Expected, e.Actual)
}
