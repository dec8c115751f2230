// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases for wayfinder.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool with fixed pragmas
// and an optional schema script applied to every connection. Callers
// either Take and Put connections themselves or use [Pool.Read] and
// [Pool.Write], which borrow a connection for the duration of a
// callback. Write runs the callback inside an IMMEDIATE transaction so
// concurrent writers queue on the busy timeout instead of failing with
// SQLITE_BUSY halfway through.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the writer.
//   - synchronous=NORMAL: commits survive a process crash.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock.
//   - foreign_keys=OFF: tables are joined by username, not constrained.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - temp_store=MEMORY
//
// A connection is never safe for concurrent use. Each goroutine takes
// its own.
package sqlitepool
