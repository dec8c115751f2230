// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gametest

import "sort"

// World is one game world. Fields may be set directly before the world
// is added to a Server; afterwards use the Server's accessors.
type World struct {
	ID string

	// Username is the world's protagonist. Empty reports null.
	Username string

	// Location is the protagonist's current room id.
	Location string

	Rooms map[string]*Room

	// DataCollection is returned verbatim by protagonist.data-collection.
	DataCollection any

	// IgnoreMoves makes protagonist.move succeed without moving.
	IgnoreMoves bool
}

// Room is a node of a world's graph.
type Room struct {
	Name  string
	Exits map[string]string
}

// NewWorld returns a world whose protagonist stands in start. The start
// room must still be added with AddRoom.
func NewWorld(id, username, start string) *World {
	return &World{
		ID:       id,
		Username: username,
		Location: start,
		Rooms:    make(map[string]*Room),
	}
}

// AddRoom adds a room and returns the world for chaining.
func (w *World) AddRoom(id, name string) *World {
	w.Rooms[id] = &Room{Name: name, Exits: make(map[string]string)}
	return w
}

// Connect adds a one-way exit from → to labelled direction.
func (w *World) Connect(from, direction, to string) *World {
	w.Rooms[from].Exits[direction] = to
	return w
}

// Link adds an exit and its reverse.
func (w *World) Link(from, direction, to, reverse string) *World {
	w.Connect(from, direction, to)
	return w.Connect(to, reverse, from)
}

func (r *Room) directions() []string {
	labels := make([]string, 0, len(r.Exits))
	for label := range r.Exits {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
