// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wayfinder.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	config := Default()
	if config.Timeout != "30s" || config.Scan.Workers != 4 {
		t.Errorf("Default = %+v", config)
	}
	if !slices.Equal(config.Discovery.ProbeLabels, []string{"N", "W", "S", "E", "OUT", "IN", "UP", "DOWN"}) {
		t.Errorf("ProbeLabels = %v", config.Discovery.ProbeLabels)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	t.Setenv("HOME", "/home/alice")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "/var/cache")

	path := writeConfig(t, `
endpoint: https://game.example.org/jsonrpc
identity: alice
secret_env: WAYFINDER_SECRET
scan:
  workers: 8
discovery:
  assume_symmetric: true
`)
	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if config.Endpoint != "https://game.example.org/jsonrpc" || config.Identity != "alice" || config.SecretEnv != "WAYFINDER_SECRET" {
		t.Errorf("identity fields = %+v", config)
	}
	if config.Scan.Workers != 8 || config.Scan.StripEmail {
		t.Errorf("Scan = %+v", config.Scan)
	}
	if !config.Discovery.AssumeSymmetric || len(config.Discovery.ProbeLabels) != 8 {
		t.Errorf("Discovery = %+v", config.Discovery)
	}
	if config.TimeoutDuration() != 30*time.Second {
		t.Errorf("TimeoutDuration = %v", config.TimeoutDuration())
	}
	if config.Database != "/home/alice/.local/share/wayfinder/records.db" {
		t.Errorf("Database = %q", config.Database)
	}
	if config.Graphs != "/var/cache/wayfinder/graphs" {
		t.Errorf("Graphs = %q", config.Graphs)
	}
	if got := config.GraphFile("manor"); got != "/var/cache/wayfinder/graphs/manor.wfng" {
		t.Errorf("GraphFile = %q", got)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("WAYFINDER_TEST_ROOT", "/srv/wayfinder")
	t.Setenv("WAYFINDER_TEST_UNSET", "")

	tests := []struct {
		input string
		want  string
	}{
		{"${WAYFINDER_TEST_ROOT}/db", "/srv/wayfinder/db"},
		{"${WAYFINDER_TEST_UNSET:-/tmp}/db", "/tmp/db"},
		{"${WAYFINDER_TEST_UNSET:-${WAYFINDER_TEST_ROOT}/cache}/g", "/srv/wayfinder/cache/g"},
		{"${WAYFINDER_TEST_UNSET}/db", "/db"},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestLoadRequiresEnvironment(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), EnvironmentVariable) {
		t.Fatalf("Load error = %v, want one naming %s", err, EnvironmentVariable)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "endpoint: http://localhost:8080\nidentity: bob\n")
	t.Setenv(EnvironmentVariable, path)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.Identity != "bob" {
		t.Errorf("Identity = %q, want bob", config.Identity)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "endpoint: http://localhost\nidentiy: typo\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile accepted an unknown key")
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	config := Default()
	config.Endpoint = "ftp://game"
	config.Timeout = "soon"
	config.Database = ""
	config.Scan.Workers = 0
	config.Discovery.ProbeLabels = []string{"N", "", "N"}

	err := config.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid configuration")
	}
	for _, want := range []string{
		"endpoint",
		"identity is required",
		"timeout",
		"database is required",
		"scan.workers",
		"probe_labels[1] is empty",
		`lists "N" twice`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error does not mention %q:\n%v", want, err)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	config := Default()
	config.Database = filepath.Join(root, "data", "records.db")
	config.Graphs = filepath.Join(root, "graphs")

	if err := config.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, directory := range []string{filepath.Join(root, "data"), config.Graphs} {
		if info, err := os.Stat(directory); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", directory, err)
		}
	}
}
