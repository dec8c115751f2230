// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds long-term secrets and negotiated keys outside the
// Go heap.
//
// [Buffer] allocates memory via mmap(MAP_ANONYMOUS), asks the kernel to
// lock it into RAM (mlock) and to exclude it from core dumps
// (MADV_DONTDUMP), and zeroes it on Close. The lock is best effort: an
// unprivileged process with a small RLIMIT_MEMLOCK still gets a usable
// buffer, and [Buffer.Locked] reports whether the pages are pinned.
//
// The kerberos client keeps the credential secret, the session key, and
// every service key in Buffers. [FromEnv] and [ReadTerminal] are the two
// ways the CLI obtains the long-term secret.
package secret
