// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the wayfinder command tree. Every command
// writes through an [App], so tests drive the whole tree against an
// in-process game server with buffers for stdout and stderr.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/wayfinder/cmd/wayfinder/cli"
	"github.com/bureau-foundation/wayfinder/lib/config"
	"github.com/bureau-foundation/wayfinder/lib/jsonrpc"
	"github.com/bureau-foundation/wayfinder/lib/kerberos"
	"github.com/bureau-foundation/wayfinder/lib/secret"
)

// App carries the process's I/O.
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	// Terminal is read for the secret prompt when the configuration
	// names no secret environment variable.
	Terminal *os.File
}

// NewApp returns an App on the process's standard streams.
func NewApp() *App {
	return &App{Stdout: os.Stdout, Stderr: os.Stderr, Terminal: os.Stdin}
}

// globalParams is embedded in every command that talks to the server or
// reads the configuration.
type globalParams struct {
	ConfigPath string `flag:"config" desc:"configuration file (default: $WAYFINDER_CONFIG)"`
	Verbose    bool   `flag:"verbose,v" desc:"log at debug level"`
}

func (a *App) logger(globals globalParams, command string) *slog.Logger {
	return cli.NewCommandLogger(a.Stderr, globals.Verbose).With("command", command)
}

// loadConfig reads and validates the configuration named by --config
// or WAYFINDER_CONFIG.
func loadConfig(globals globalParams) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if globals.ConfigPath != "" {
		cfg, err = config.LoadFile(globals.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// connector opens authenticated sessions against the configured
// server. The long-term secret is read once and copied into each
// session, which zeroes its copy.
type connector struct {
	config *config.Config
	secret *secret.Buffer
	logger *slog.Logger
}

func (a *App) connect(cfg *config.Config, logger *slog.Logger) (*connector, error) {
	var buffer *secret.Buffer
	var err error
	if cfg.SecretEnv != "" {
		buffer, err = secret.FromEnv(cfg.SecretEnv)
	} else {
		if a.Terminal == nil {
			return nil, fmt.Errorf("no secret_env configured and no terminal to prompt on")
		}
		buffer, err = secret.ReadTerminal(int(a.Terminal.Fd()), fmt.Sprintf("Secret for %s: ", cfg.Identity), a.Stderr)
	}
	if err != nil {
		return nil, err
	}
	return &connector{config: cfg, secret: buffer, logger: logger}, nil
}

// dial opens one session. The caller closes it.
func (c *connector) dial(ctx context.Context) (*kerberos.Client, error) {
	transport, err := jsonrpc.New(jsonrpc.Config{
		Endpoint: c.config.Endpoint,
		Timeout:  c.config.TimeoutDuration(),
		Logger:   c.logger,
	})
	if err != nil {
		return nil, err
	}
	credential := make([]byte, c.secret.Len())
	copy(credential, c.secret.Bytes())
	client, err := kerberos.New(ctx, kerberos.Config{
		Caller:     transport,
		Credential: kerberos.Credential{Identity: c.config.Identity, Secret: credential},
		Logger:     c.logger,
	})
	if err != nil {
		secret.Zero(credential)
		return nil, err
	}
	return client, nil
}

func (c *connector) Close() error {
	return c.secret.Close()
}

// remote is one authenticated session plus what opened it.
type remote struct {
	client   *kerberos.Client
	config   *config.Config
	logger   *slog.Logger
	sessions *connector
}

// session loads the configuration, reads the secret, and dials once.
func (a *App) session(ctx context.Context, globals globalParams, command string) (*remote, error) {
	logger := a.logger(globals, command)
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}
	sessions, err := a.connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	client, err := sessions.dial(ctx)
	if err != nil {
		sessions.Close()
		return nil, err
	}
	return &remote{client: client, config: cfg, logger: logger, sessions: sessions}, nil
}

func (r *remote) Close() error {
	r.client.Close()
	return r.sessions.Close()
}

// writeRaw pretty-prints a JSON result. Values that are not valid JSON
// are written as they are.
func writeRaw(w io.Writer, raw json.RawMessage) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, raw, "", "  "); err != nil {
		_, err := fmt.Fprintf(w, "%s\n", raw)
		return err
	}
	indented.WriteByte('\n')
	_, err := indented.WriteTo(w)
	return err
}
