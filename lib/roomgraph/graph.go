// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomgraph

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
)

// Room is a room of one world instance.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Edge is one directed exit of a NameGraph.
type Edge struct {
	From      string `json:"from"`
	Direction string `json:"direction"`
	To        string `json:"to"`
}

// RecordOutcome reports what NameGraph.Record did.
type RecordOutcome int

const (
	// EdgeAdded means the edge was new.
	EdgeAdded RecordOutcome = iota + 1

	// EdgeUnchanged means the same edge was already recorded.
	EdgeUnchanged

	// EdgeOverwritten means the direction previously led elsewhere. The
	// topology drifted between observations.
	EdgeOverwritten
)

func (outcome RecordOutcome) String() string {
	switch outcome {
	case EdgeAdded:
		return "added"
	case EdgeUnchanged:
		return "unchanged"
	case EdgeOverwritten:
		return "overwritten"
	default:
		return "invalid"
	}
}

// NormalizeName returns name in Unicode NFC, the form used for graph
// keys.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// NameGraph maps room names to their exits by name. A NameGraph is
// built by a single goroutine and must not be mutated once shared;
// concurrent readers are safe.
type NameGraph struct {
	rooms map[string]map[string]string
}

// NewNameGraph returns an empty graph.
func NewNameGraph() *NameGraph {
	return &NameGraph{rooms: make(map[string]map[string]string)}
}

// AddRoom adds name as a node with no exits if it is not present.
func (g *NameGraph) AddRoom(name string) {
	name = NormalizeName(name)
	if _, ok := g.rooms[name]; !ok {
		g.rooms[name] = make(map[string]string)
	}
}

// Record sets from --direction--> to. Both rooms become nodes.
func (g *NameGraph) Record(from, direction, to string) RecordOutcome {
	from, to = NormalizeName(from), NormalizeName(to)
	g.AddRoom(from)
	g.AddRoom(to)

	exits := g.rooms[from]
	previous, ok := exits[direction]
	exits[direction] = to
	switch {
	case !ok:
		return EdgeAdded
	case previous == to:
		return EdgeUnchanged
	default:
		return EdgeOverwritten
	}
}

// Has reports whether name is a node.
func (g *NameGraph) Has(name string) bool {
	_, ok := g.rooms[NormalizeName(name)]
	return ok
}

// Neighbor returns the room reached from name by direction.
func (g *NameGraph) Neighbor(name, direction string) (string, bool) {
	neighbor, ok := g.rooms[NormalizeName(name)][direction]
	return neighbor, ok
}

// Directions returns the exit labels of name, sorted.
func (g *NameGraph) Directions(name string) []string {
	exits := g.rooms[NormalizeName(name)]
	labels := make([]string, 0, len(exits))
	for label := range exits {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Names returns every node, sorted.
func (g *NameGraph) Names() []string {
	names := make([]string, 0, len(g.rooms))
	for name := range g.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of nodes.
func (g *NameGraph) Len() int { return len(g.rooms) }

// Edges returns every edge sorted by origin, then direction.
func (g *NameGraph) Edges() []Edge {
	var edges []Edge
	for _, name := range g.Names() {
		for _, label := range g.Directions(name) {
			edges = append(edges, Edge{From: name, Direction: label, To: g.rooms[name][label]})
		}
	}
	return edges
}

// topologyDomainKey separates fingerprints from any other BLAKE3 use.
var topologyDomainKey = [32]byte{
	'w', 'a', 'y', 'f', 'i', 'n', 'd', 'e', 'r', '.', 'r', 'o', 'o', 'm', 'g', 'r',
	'a', 'p', 'h', '.', 't', 'o', 'p', 'o', 'l', 'o', 'g', 'y', 0, 0, 0, 0,
}

// Fingerprint returns the hex BLAKE3 keyed hash of the graph's sorted
// nodes and edges. Two graphs with the same topology have the same
// fingerprint regardless of the order edges were recorded in.
func (g *NameGraph) Fingerprint() string {
	hasher, err := blake3.NewKeyed(topologyDomainKey[:])
	if err != nil {
		panic("roomgraph: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var buffer []byte
	writeField := func(field string) {
		buffer = binary.AppendUvarint(buffer[:0], uint64(len(field)))
		buffer = append(buffer, field...)
		hasher.Write(buffer)
	}
	for _, name := range g.Names() {
		writeField(name)
		labels := g.Directions(name)
		buffer = binary.AppendUvarint(buffer[:0], uint64(len(labels)))
		hasher.Write(buffer)
		for _, label := range labels {
			writeField(label)
			writeField(g.rooms[name][label])
		}
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// fromRooms builds a graph from a decoded room table.
func fromRooms(rooms map[string]map[string]string) *NameGraph {
	graph := NewNameGraph()
	for name, exits := range rooms {
		graph.AddRoom(name)
		for label, neighbor := range exits {
			graph.Record(name, label, neighbor)
		}
	}
	return graph
}

// table returns the graph's room table. The maps are the graph's own
// and must not be modified.
func (g *NameGraph) table() map[string]map[string]string {
	return g.rooms
}
