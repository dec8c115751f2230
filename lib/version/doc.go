// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the wayfinder build.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected with
// -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/wayfinder/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/wayfinder
//
// When they are not injected, the VCS stamp the Go toolchain embeds in
// module builds is used instead, so `go install` builds still report
// their revision.
package version
