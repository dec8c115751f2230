// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kerberos is the ticket protocol client for the game server.
//
// The server splits its operations into two groups. Unprotected
// operations are plain JSON-RPC calls. Protected operations require a
// service ticket for that specific operation, and their parameters and
// results travel encrypted under the ticket's service key.
//
// Obtaining a service ticket takes two exchanges, both unprotected:
//
//  1. kerberos.authentication-service {username} returns a session
//     ticket and a session key encrypted under the long-term secret.
//  2. kerberos.ticket-granting-service {ticket, authenticator, method}
//     returns a service ticket and a service key encrypted under the
//     session key.
//
// An authenticator is {username, timestamp} encrypted under the key it
// proves knowledge of. A fresh one accompanies every ticket-granting
// request and every protected call.
//
// [New] performs step 1 before returning, so a [Client] always holds a
// session. Step 2 runs lazily the first time each protected operation is
// invoked; the service ticket is then cached for the life of the session.
// [Client.Authenticate] starts a new session and drops every cached
// service ticket.
//
// The [Catalog] classifies each operation name. Names that are neither
// protected nor unprotected (including the restricted session-store.get)
// are refused before any network traffic, as are positional parameters.
//
// Key material (the long-term secret, the session key, and each service
// key) lives in [secret.Buffer] memory and is zeroed by [Client.Close].
package kerberos
