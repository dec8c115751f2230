// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cipher

import "fmt"

// Diagnostics reported in Error.Diagnostic. The first four match the
// text OpenSSL prints for the same condition.
const (
	DiagnosticBadMagic        = "bad magic number"
	DiagnosticBadDecrypt      = "bad decrypt"
	DiagnosticReadInput       = "error reading input file"
	DiagnosticEmptyPassphrase = "empty passphrase"
	DiagnosticRandom          = "salt generation failed"
	DiagnosticCipherInit      = "cipher initialization failed"
)

// Error is returned for every encrypt or decrypt failure. A wrong
// passphrase surfaces as DiagnosticBadDecrypt; it is never retried.
type Error struct {
	// Op is "encrypt" or "decrypt".
	Op string

	Diagnostic string

	// Err is the underlying cause, if any (base64 or crypto/rand errors).
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cipher: %s: %s: %v", e.Op, e.Diagnostic, e.Err)
	}
	return fmt.Sprintf("cipher: %s: %s", e.Op, e.Diagnostic)
}

func (e *Error) Unwrap() error { return e.Err }
