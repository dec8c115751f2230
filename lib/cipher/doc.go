// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cipher produces and consumes the passphrase envelopes the game
// server exchanges: the exact output of
//
//	openssl enc -aes-128-cbc -pbkdf2 -base64 -pass pass:KEY
//
// An envelope is base64("Salted__" || salt || ciphertext), wrapped at 64
// columns with a trailing newline. Key and IV come from
// PBKDF2-HMAC-SHA256 over the passphrase and salt (10000 iterations, 32
// bytes: 16 key, 16 IV). The plaintext is PKCS#7 padded.
//
// Encrypt and Decrypt are pure functions of their inputs (plus a random
// salt on encrypt) and are safe for concurrent use. Every failure is an
// [*Error] carrying the diagnostic OpenSSL itself would print, so logs
// from this package read the same as logs from the server side.
package cipher
