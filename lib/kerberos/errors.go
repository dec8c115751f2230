// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kerberos

import "fmt"

// AuthenticationError reports that a session could not be established:
// the server rejected the identity, or the session key did not decrypt
// under the long-term secret (a wrong secret). Err is the underlying
// *jsonrpc.RemoteError or *cipher.Error.
type AuthenticationError struct {
	Identity string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("kerberos: authentication failed for %q: %v", e.Identity, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// UnknownOperationError reports an operation name that the catalog does
// not allow. No request was sent.
type UnknownOperationError struct {
	Operation string

	// Restricted is true when the name is known but never invoked.
	Restricted bool
}

func (e *UnknownOperationError) Error() string {
	if e.Restricted {
		return fmt.Sprintf("kerberos: operation %q is restricted", e.Operation)
	}
	return fmt.Sprintf("kerberos: unknown operation %q", e.Operation)
}

// UsageError reports parameters the catalog rejects: positional
// arguments, unknown names, or missing required names. No request was
// sent.
type UsageError struct {
	Operation string
	Reason    string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("kerberos: %s: %s", e.Operation, e.Reason)
}
