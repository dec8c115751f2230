// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads wayfinder's YAML configuration.
//
// The file is named by the --config flag ([LoadFile]) or the
// WAYFINDER_CONFIG environment variable ([Load]). There is no search
// path and no fallback: a command that needs configuration and finds
// neither fails.
//
// Values from the file are merged over [Default]. Unknown keys are
// errors. Environment variables never override values; the only
// expansion is ${VAR} and ${VAR:-default} inside the database and
// graphs paths. The long-term secret never appears in the file: the
// file names the environment variable that holds it (secret_env), and
// when that is empty the CLI prompts for it.
package config
