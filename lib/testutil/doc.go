// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never block forever on a channel. They are the only
// place tests wait on the wall clock.
//
// [NewLogger] returns a slog.Logger whose records tests can inspect,
// safe for loggers shared by concurrent workers.
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
