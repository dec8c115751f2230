// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package world

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/wayfinder/lib/jsonrpc"
)

// Invoker calls a game operation by name with named parameters.
// *kerberos.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, operation string, params any) (json.RawMessage, error)
}

// Client exposes the game's operations as typed methods. It holds no
// state of its own; concurrency follows the Invoker.
type Client struct {
	invoker Invoker
}

// New returns a Client over invoker.
func New(invoker Invoker) *Client {
	return &Client{invoker: invoker}
}

type worldParams struct {
	WorldID string `json:"world_id"`
}

type roomParams struct {
	WorldID string `json:"world_id"`
	Room    string `json:"room"`
}

type neighborParams struct {
	WorldID   string `json:"world_id"`
	Room      string `json:"room"`
	Direction string `json:"direction"`
}

// Man returns the server's manual entry for operation.
func (c *Client) Man(ctx context.Context, operation string) (json.RawMessage, error) {
	return c.invoker.Invoke(ctx, "man", map[string]string{"method": operation})
}

// Echo sends message through the unprotected echo operation.
func (c *Client) Echo(ctx context.Context, message string) (json.RawMessage, error) {
	return c.invoker.Invoke(ctx, "echo", map[string]string{"message": message})
}

// KerberosEcho sends message through the protected echo operation,
// exercising the full ticket path.
func (c *Client) KerberosEcho(ctx context.Context, message string) (json.RawMessage, error) {
	return c.invoker.Invoke(ctx, "kerberos.echo", map[string]string{"message": message})
}

// ServerStatus returns the server's status document.
func (c *Client) ServerStatus(ctx context.Context) (json.RawMessage, error) {
	return c.invoker.Invoke(ctx, "server.status", nil)
}

// ServerHistory returns the server's history document.
func (c *Client) ServerHistory(ctx context.Context) (json.RawMessage, error) {
	return c.invoker.Invoke(ctx, "server.history", nil)
}

// ListWorlds returns the id of every world. The server lists each world
// as an array whose first element is its id.
func (c *Client) ListWorlds(ctx context.Context) ([]string, error) {
	raw, err := c.invoker.Invoke(ctx, "world.list", nil)
	if err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &jsonrpc.ProtocolError{Operation: "world.list", Detail: "result is not an array", Err: err}
	}
	ids := make([]string, 0, len(entries))
	for index, entry := range entries {
		var fields []json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || len(fields) == 0 {
			return nil, &jsonrpc.ProtocolError{Operation: "world.list", Detail: fmt.Sprintf("entry %d is not a non-empty array", index)}
		}
		var id string
		if err := json.Unmarshal(fields[0], &id); err != nil {
			return nil, &jsonrpc.ProtocolError{Operation: "world.list", Detail: fmt.Sprintf("entry %d has a non-string id", index), Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Location returns the id of the room the protagonist of worldID is in.
func (c *Client) Location(ctx context.Context, worldID string) (string, error) {
	raw, err := c.invoker.Invoke(ctx, "protagonist.location", worldParams{WorldID: worldID})
	if err != nil {
		return "", err
	}
	return decodeString("protagonist.location", raw)
}

// Username returns the protagonist of worldID, or "" when the world has
// none.
func (c *Client) Username(ctx context.Context, worldID string) (string, error) {
	raw, err := c.invoker.Invoke(ctx, "protagonist.username", worldParams{WorldID: worldID})
	if err != nil {
		return "", err
	}
	return decodeOptionalString("protagonist.username", raw)
}

// RoomName returns the display name of room.
func (c *Client) RoomName(ctx context.Context, worldID, room string) (string, error) {
	raw, err := c.invoker.Invoke(ctx, "room.name", roomParams{WorldID: worldID, Room: room})
	if err != nil {
		return "", err
	}
	return decodeString("room.name", raw)
}

// RoomNeighbor returns the id of the room reached from room by
// direction, or "" when there is no exit that way.
func (c *Client) RoomNeighbor(ctx context.Context, worldID, room, direction string) (string, error) {
	raw, err := c.invoker.Invoke(ctx, "room.neighbor", neighborParams{WorldID: worldID, Room: room, Direction: direction})
	if err != nil {
		return "", err
	}
	inner, err := unwrapResult("room.neighbor", raw)
	if err != nil {
		return "", err
	}
	return decodeOptionalString("room.neighbor", inner)
}

// RoomDirections returns the direction labels that lead out of room.
func (c *Client) RoomDirections(ctx context.Context, worldID, room string) ([]string, error) {
	raw, err := c.invoker.Invoke(ctx, "room.directions", roomParams{WorldID: worldID, Room: room})
	if err != nil {
		return nil, err
	}
	inner, err := unwrapResult("room.directions", raw)
	if err != nil {
		return nil, err
	}
	if isNull(inner) {
		return nil, nil
	}
	var directions []string
	if err := json.Unmarshal(inner, &directions); err != nil {
		return nil, &jsonrpc.ProtocolError{Operation: "room.directions", Detail: "result is not a list of labels", Err: err}
	}
	return directions, nil
}

// Move asks the server to put the protagonist of worldID in room. The
// server may ignore or redirect the move; callers that care verify with
// Location.
func (c *Client) Move(ctx context.Context, worldID, room string) (json.RawMessage, error) {
	return c.invoker.Invoke(ctx, "protagonist.move", roomParams{WorldID: worldID, Room: room})
}

// CreateWorld asks the server to create a world connected to ip.
func (c *Client) CreateWorld(ctx context.Context, ip, protocol string, extendedClient bool) (json.RawMessage, error) {
	return c.invoker.Invoke(ctx, "world.create", map[string]any{
		"ip":              ip,
		"protocol":        protocol,
		"extended_client": extendedClient,
	})
}

// WalkmanTracks returns the walkman track listing of worldID.
func (c *Client) WalkmanTracks(ctx context.Context, worldID string) (json.RawMessage, error) {
	return c.invoker.Invoke(ctx, "walkman.get-tracks", worldParams{WorldID: worldID})
}

// ChipWhisperer submits ciphertexts to the chip whisperer of worldID.
func (c *Client) ChipWhisperer(ctx context.Context, worldID string, ciphertexts []string) (json.RawMessage, error) {
	if ciphertexts == nil {
		ciphertexts = []string{}
	}
	return c.invoker.Invoke(ctx, "chip.whisperer", map[string]any{
		"world_id":    worldID,
		"ciphertexts": ciphertexts,
	})
}

// IsActionDone reports whether the named action has been completed in
// worldID.
func (c *Client) IsActionDone(ctx context.Context, worldID, name string) (bool, error) {
	raw, err := c.invoker.Invoke(ctx, "action.is_done", map[string]string{"world_id": worldID, "name": name})
	if err != nil {
		return false, err
	}
	var done bool
	if err := json.Unmarshal(raw, &done); err != nil {
		return false, &jsonrpc.ProtocolError{Operation: "action.is_done", Detail: "result is not a boolean", Err: err}
	}
	return done, nil
}

// WorldsOf returns the ids of every world whose protagonist is username.
// It makes one world.list call plus one protagonist.username call per
// world.
func (c *Client) WorldsOf(ctx context.Context, username string) ([]string, error) {
	ids, err := c.ListWorlds(ctx)
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, id := range ids {
		owner, err := c.Username(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("world %s: %w", id, err)
		}
		if owner == username {
			matches = append(matches, id)
		}
	}
	return matches, nil
}

// unwrapResult returns X from {"result": X}. Neighbor and direction
// lookups nest their answer one level deeper than other operations.
func unwrapResult(operation string, raw json.RawMessage) (json.RawMessage, error) {
	var wrapper struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, &jsonrpc.ProtocolError{Operation: operation, Detail: `result is not a {"result": ...} object`, Err: err}
	}
	if wrapper.Result == nil {
		return json.RawMessage("null"), nil
	}
	return wrapper.Result, nil
}

func decodeString(operation string, raw json.RawMessage) (string, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", &jsonrpc.ProtocolError{Operation: operation, Detail: "result is not a string", Err: err}
	}
	return value, nil
}

func decodeOptionalString(operation string, raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	return decodeString(operation, raw)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
