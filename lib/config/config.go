// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the configuration file when --config is
// not given.
const EnvironmentVariable = "WAYFINDER_CONFIG"

// Config is wayfinder's configuration.
type Config struct {
	// Endpoint is the game server's JSON-RPC URL.
	Endpoint string `yaml:"endpoint"`

	// Identity is the username to authenticate as.
	Identity string `yaml:"identity"`

	// SecretEnv names the environment variable holding the long-term
	// secret. Empty means prompt on the terminal.
	SecretEnv string `yaml:"secret_env"`

	// Timeout bounds each remote call, as a Go duration string.
	Timeout string `yaml:"timeout"`

	// Database is the record store's SQLite file.
	Database string `yaml:"database"`

	// Graphs is the directory holding room graph cache files.
	Graphs string `yaml:"graphs"`

	Scan      ScanConfig      `yaml:"scan"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// ScanConfig configures `wayfinder scan`.
type ScanConfig struct {
	// Workers is the number of concurrent sessions.
	Workers int `yaml:"workers"`

	// StripEmail drops email addresses before they are stored.
	StripEmail bool `yaml:"strip_email"`
}

// DiscoveryConfig configures room graph building.
type DiscoveryConfig struct {
	// ProbeLabels are tried in order when a server cannot list a
	// room's directions.
	ProbeLabels []string `yaml:"probe_labels"`

	// AssumeSymmetric skips probing the way back into the room just
	// left. Wrong for worlds with one-way exits.
	AssumeSymmetric bool `yaml:"assume_symmetric"`
}

// Default returns the values a configuration file is merged over.
func Default() *Config {
	return &Config{
		Timeout:  "30s",
		Database: "${XDG_DATA_HOME:-${HOME}/.local/share}/wayfinder/records.db",
		Graphs:   "${XDG_CACHE_HOME:-${HOME}/.cache}/wayfinder/graphs",
		Scan: ScanConfig{
			Workers: 4,
		},
		Discovery: DiscoveryConfig{
			ProbeLabels: []string{"N", "W", "S", "E", "OUT", "IN", "UP", "DOWN"},
		},
	}
}

// Load loads the file named by WAYFINDER_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your wayfinder.yaml, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads the configuration file at path. The result is not
// validated; call Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes a YAML document over Default and expands variables.
func Parse(data []byte) (*Config, error) {
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	config.Database = expandVars(config.Database)
	config.Graphs = expandVars(config.Graphs)
	return config, nil
}

// varPattern matches ${VAR} and ${VAR:-default}. Defaults may contain
// one nested ${VAR}.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^{}]|\$\{[^{}]*\})*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return expandVars(parts[2])
	})
}

// TimeoutDuration returns Timeout parsed. Call Validate first.
func (c *Config) TimeoutDuration() time.Duration {
	duration, _ := time.ParseDuration(c.Timeout)
	return duration
}

// GraphFile returns the cache file for the graph called name.
func (c *Config) GraphFile(name string) string {
	return filepath.Join(c.Graphs, name+".wfng")
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Endpoint == "" {
		errs = append(errs, fmt.Errorf("endpoint is required"))
	} else if parsed, err := url.Parse(c.Endpoint); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("endpoint %q must be an http or https URL", c.Endpoint))
	}
	if c.Identity == "" {
		errs = append(errs, fmt.Errorf("identity is required"))
	}
	if duration, err := time.ParseDuration(c.Timeout); err != nil || duration <= 0 {
		errs = append(errs, fmt.Errorf("timeout %q must be a positive duration", c.Timeout))
	}
	if c.Database == "" {
		errs = append(errs, fmt.Errorf("database is required"))
	}
	if c.Graphs == "" {
		errs = append(errs, fmt.Errorf("graphs is required"))
	}
	if c.Scan.Workers < 1 {
		errs = append(errs, fmt.Errorf("scan.workers must be at least 1, got %d", c.Scan.Workers))
	}

	labels := c.Discovery.ProbeLabels
	if len(labels) == 0 {
		errs = append(errs, fmt.Errorf("discovery.probe_labels must not be empty"))
	}
	for index, label := range labels {
		if label == "" {
			errs = append(errs, fmt.Errorf("discovery.probe_labels[%d] is empty", index))
		} else if slices.Index(labels, label) != index {
			errs = append(errs, fmt.Errorf("discovery.probe_labels lists %q twice", label))
		}
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the database's directory and the graphs
// directory.
func (c *Config) EnsurePaths() error {
	for _, directory := range []string{filepath.Dir(c.Database), c.Graphs} {
		if err := os.MkdirAll(directory, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}
