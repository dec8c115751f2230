// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonrpc is the game server's transport: JSON-RPC 2.0 requests
// POSTed to a single endpoint.
//
// Every request carries a params object (never a positional array) and an
// id derived from the client's clock in milliseconds, bumped by one when
// the clock has not advanced so ids stay strictly increasing per
// [Client].
//
// Failures fall into three types that callers tell apart with errors.As:
//
//   - [*TransportError]: the exchange itself failed (network, timeout,
//     non-2xx status). Retrying may help; this package never retries.
//   - [*RemoteError]: the server answered with an "error" member. The
//     payload is kept verbatim.
//   - [*ProtocolError]: the answer was not a JSON-RPC response.
//
// A Client is safe for concurrent use.
package jsonrpc
