// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gametest provides an in-memory game server for tests.
//
// [Server] speaks the server side of the ticket protocol: it issues
// session and service tickets, checks authenticators, decrypts
// encrypted_args, and encrypts protected results, all with lib/cipher.
// It implements kerberos.Caller directly and http.Handler for tests that
// go through the real JSON-RPC transport.
//
// Worlds are small room graphs built with [NewWorld], [World.AddRoom],
// and [World.Connect]. The built-in operations cover everything the
// discovery engine and scan job use; [Server.Handle] adds or overrides
// operations. [Server.Calls] counts requests per operation so tests can
// assert call bounds.
package gametest
