// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package world wraps the game's operations in typed Go methods.
//
// A [Client] sits on anything that can Invoke an operation by name
// (normally a *kerberos.Client) and turns the server's loosely shaped
// answers into Go values: world listings become id slices, neighbor
// lookups become a room id or "", data collections become a [Profile].
// Answers that do not have the expected shape are reported as
// *jsonrpc.ProtocolError.
package world
