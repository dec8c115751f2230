// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package roomgraph maps and navigates the room graphs of game worlds.
//
// A world is only visible through remote calls: where am I, what is
// this room called, what lies in direction D. Room ids are private to a
// world instance, but room names are shared by every world built from
// the same topology. The package exploits that in two phases:
//
//   - [Engine.Build] explores one world exhaustively (depth first, by
//     room id) and records a [NameGraph]: room name → direction →
//     neighbor name. Directions come from room.directions when the
//     server offers it, otherwise each label of a probe set is tried.
//   - [Engine.Discover] walks another world breadth first over the
//     NameGraph, issuing one room.neighbor call per edge it follows to
//     learn that world's ids. No labels are probed blindly.
//
// Name stability across worlds is assumed, not checked. When the start
// room is not in the graph Discover returns the start room alone, and
// when the world does not confirm a predicted edge the edge is skipped.
// Both are logged as warnings, not returned as errors.
//
// [Engine.Teleport] moves the protagonist and confirms the move by
// reading the location back; a mismatch is a [*NavigationError].
//
// Graphs are cached on disk with [SaveFile] and [LoadFile]: a short
// header ("WFNG", format version, compression tag, payload size)
// followed by a Core Deterministic CBOR document carrying the graph and
// its BLAKE3 fingerprint, optionally compressed with zstd or LZ4.
package roomgraph
