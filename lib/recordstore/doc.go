// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recordstore persists what a scan learns about players: one
// row per user, one row per world (its protagonist and last seen
// position), and one row per flag. Tables are flat and joined by
// username; nothing is ever deleted.
//
// Writes are idempotent so a scan can be rerun at any time. Users and
// flags are insert-if-absent. Worlds are inserted once and afterwards
// only their position columns change.
//
// Flags are named "<base>:<suffix>". Reports compare players by flag
// base; flags without a colon have no base and are not counted.
package recordstore
