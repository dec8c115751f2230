// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kerberos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/wayfinder/lib/cipher"
	"github.com/bureau-foundation/wayfinder/lib/clock"
	"github.com/bureau-foundation/wayfinder/lib/jsonrpc"
	"github.com/bureau-foundation/wayfinder/lib/secret"
)

// Caller sends one JSON-RPC request. *jsonrpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Credential is the long-term identity. Secret is copied into protected
// memory by New and zeroed in place.
type Credential struct {
	Identity string
	Secret   []byte
}

// Config holds configuration for creating a Client.
type Config struct {
	Caller     Caller
	Credential Credential

	// Catalog classifies operations. If nil, DefaultCatalog() is used.
	Catalog *Catalog

	// Clock stamps authenticators. If nil, clock.Real() is used.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// ticket is a (ticket, key) pair issued by the server. The key is
// closed when the ticket is dropped.
type ticket struct {
	ticket string
	key    *secret.Buffer
}

func (t *ticket) close() {
	if t != nil && t.key != nil {
		t.key.Close()
	}
}

// Client invokes game operations, negotiating tickets as needed. A
// Client is safe for concurrent use. Protected invocations share the
// session under a read lock, so Authenticate waits for in-flight
// protected calls to finish before replacing the session.
//
// A remote error on a protected call evicts that operation's service
// ticket, and a remote error from the ticket-granting exchange makes the
// next protected call authenticate first. The failed call itself is not
// retried.
type Client struct {
	caller   Caller
	catalog  *Catalog
	clock    clock.Clock
	logger   *slog.Logger
	identity string
	secret   *secret.Buffer

	sessionMu sync.RWMutex
	session   *ticket
	closed    bool

	// stale is set when the server refuses the session ticket. The next
	// protected invocation authenticates before using it.
	stale atomic.Bool

	// ticketMu is held across cache lookup and the ticket-granting
	// exchange so concurrent first calls to one operation produce a
	// single exchange. Always acquired after sessionMu.
	ticketMu sync.Mutex
	tickets  map[string]*ticket

	// retired holds evicted service tickets whose keys may still be in
	// use by in-flight calls. They are closed under the session write
	// lock.
	retired []*ticket
}

// New validates config, authenticates, and returns a Client holding a
// session. Credential.Secret is zeroed whether or not New succeeds.
func New(ctx context.Context, config Config) (*Client, error) {
	if config.Caller == nil {
		secret.Zero(config.Credential.Secret)
		return nil, fmt.Errorf("kerberos: Caller is required")
	}
	if config.Credential.Identity == "" {
		secret.Zero(config.Credential.Secret)
		return nil, fmt.Errorf("kerberos: Credential.Identity is required")
	}
	longTerm, err := secret.NewFromBytes(config.Credential.Secret)
	if err != nil {
		return nil, fmt.Errorf("kerberos: Credential.Secret: %w", err)
	}

	catalog := config.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client := &Client{
		caller:   config.Caller,
		catalog:  catalog,
		clock:    clk,
		logger:   logger,
		identity: config.Credential.Identity,
		secret:   longTerm,
		tickets:  make(map[string]*ticket),
	}
	if err := client.Authenticate(ctx); err != nil {
		longTerm.Close()
		return nil, err
	}
	return client, nil
}

// Identity returns the authenticated username.
func (c *Client) Identity() string { return c.identity }

// Catalog returns the catalog the client enforces.
func (c *Client) Catalog() *Catalog { return c.catalog }

// Authenticate runs the authentication exchange and replaces the
// session. Cached service tickets belong to the old session and are
// dropped. On failure the previous session, if any, stays in place.
func (c *Client) Authenticate(ctx context.Context) error {
	raw, err := c.caller.Call(ctx, OperationAuthenticationService, map[string]string{"username": c.identity})
	if err != nil {
		var remoteError *jsonrpc.RemoteError
		if errors.As(err, &remoteError) {
			return &AuthenticationError{Identity: c.identity, Err: err}
		}
		return fmt.Errorf("kerberos: authenticating %q: %w", c.identity, err)
	}

	session, err := c.openSession(raw)
	if err != nil {
		var cipherError *cipher.Error
		if errors.As(err, &cipherError) {
			return &AuthenticationError{Identity: c.identity, Err: err}
		}
		return err
	}

	c.sessionMu.Lock()
	if c.closed {
		c.sessionMu.Unlock()
		session.close()
		return fmt.Errorf("kerberos: client is closed")
	}
	previous := c.session
	c.session = session
	c.ticketMu.Lock()
	dropped := c.tickets
	retired := c.retired
	c.tickets = make(map[string]*ticket)
	c.retired = nil
	c.ticketMu.Unlock()
	c.stale.Store(false)
	c.sessionMu.Unlock()

	previous.close()
	for _, serviceTicket := range dropped {
		serviceTicket.close()
	}
	for _, serviceTicket := range retired {
		serviceTicket.close()
	}
	c.logger.Info("kerberos session established", "identity", c.identity, "dropped_tickets", len(dropped))
	return nil
}

// openSession decrypts the authentication response under the long-term
// secret. The read lock keeps Close from releasing the secret meanwhile.
func (c *Client) openSession(raw json.RawMessage) (*ticket, error) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("kerberos: client is closed")
	}
	return c.openGrant(OperationAuthenticationService, raw, c.secret)
}

// grant is the shape of both the authentication and ticket-granting
// responses.
type grant struct {
	Ticket *string `json:"ticket"`
	Key    *string `json:"key"`
}

// openGrant decodes a {ticket, key} response and decrypts the key under
// unlockKey. The decrypted key is kept verbatim: the server derives its
// own passphrase from the same bytes, trailing newline included.
func (c *Client) openGrant(operation string, raw json.RawMessage, unlockKey *secret.Buffer) (*ticket, error) {
	var response grant
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, &jsonrpc.ProtocolError{Operation: operation, Detail: "response is not a {ticket, key} object", Err: err}
	}
	if response.Ticket == nil || response.Key == nil {
		return nil, &jsonrpc.ProtocolError{Operation: operation, Detail: "response is missing ticket or key"}
	}

	keyBytes, err := cipher.Decrypt(*response.Key, unlockKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("kerberos: %s: decrypting key: %w", operation, err)
	}
	if len(keyBytes) == 0 {
		return nil, &jsonrpc.ProtocolError{Operation: operation, Detail: "decrypted key is empty"}
	}
	key, err := secret.NewFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("kerberos: %s: %w", operation, err)
	}
	return &ticket{ticket: *response.Ticket, key: key}, nil
}

// Invoke calls operation with named parameters. params must encode as a
// JSON object (a struct, a map, or nil). The returned JSON is the
// operation's result, decrypted when the operation is protected.
func (c *Client) Invoke(ctx context.Context, operation string, params any) (json.RawMessage, error) {
	entry, known := c.catalog.Lookup(operation)
	switch {
	case entry.Protection == Restricted:
		return nil, &UnknownOperationError{Operation: operation, Restricted: true}
	case !known || entry.Protection == Unknown:
		return nil, &UnknownOperationError{Operation: operation}
	}

	named, err := namedParams(entry, params)
	if err != nil {
		return nil, err
	}

	if entry.Protection == Unprotected {
		c.sessionMu.RLock()
		closed := c.closed
		c.sessionMu.RUnlock()
		if closed {
			return nil, fmt.Errorf("kerberos: client is closed")
		}
		result, err := c.caller.Call(ctx, operation, named)
		if err != nil {
			return nil, fmt.Errorf("kerberos: %s: %w", operation, err)
		}
		return result, nil
	}
	return c.invokeProtected(ctx, operation, named)
}

func (c *Client) invokeProtected(ctx context.Context, operation string, named map[string]json.RawMessage) (json.RawMessage, error) {
	if c.stale.Load() {
		c.logger.Info("session ticket refused, re-authenticating", "identity", c.identity, "operation", operation)
		if err := c.Authenticate(ctx); err != nil {
			return nil, fmt.Errorf("kerberos: %s: re-authenticating: %w", operation, err)
		}
	}

	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("kerberos: client is closed")
	}

	serviceTicket, err := c.serviceTicket(ctx, operation)
	if err != nil {
		return nil, err
	}
	serviceKey := serviceTicket.key.Bytes()

	authenticator, err := c.authenticator(serviceKey)
	if err != nil {
		return nil, fmt.Errorf("kerberos: %s: %w", operation, err)
	}
	encryptedArgs := ""
	if len(named) > 0 {
		encoded, err := json.Marshal(named)
		if err != nil {
			return nil, fmt.Errorf("kerberos: %s: encoding parameters: %w", operation, err)
		}
		encryptedArgs, err = cipher.Encrypt(append(encoded, '\n'), serviceKey)
		if err != nil {
			return nil, fmt.Errorf("kerberos: %s: encrypting parameters: %w", operation, err)
		}
	}

	raw, err := c.caller.Call(ctx, operation, map[string]string{
		"ticket":         serviceTicket.ticket,
		"authenticator":  authenticator,
		"encrypted_args": encryptedArgs,
	})
	if err != nil {
		var remoteError *jsonrpc.RemoteError
		if errors.As(err, &remoteError) {
			c.evict(operation, serviceTicket)
		}
		return nil, fmt.Errorf("kerberos: %s: %w", operation, err)
	}

	var sealed string
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return nil, &jsonrpc.ProtocolError{Operation: operation, Detail: "protected result is not a string", Err: err}
	}
	plain, err := cipher.Decrypt(sealed, serviceKey)
	if err != nil {
		return nil, fmt.Errorf("kerberos: %s: decrypting result: %w", operation, err)
	}
	plain = bytes.TrimSpace(plain)
	if !json.Valid(plain) {
		return nil, &jsonrpc.ProtocolError{Operation: operation, Detail: "decrypted result is not valid JSON"}
	}
	return json.RawMessage(plain), nil
}

// serviceTicket returns the cached ticket for operation or obtains one.
// The caller holds sessionMu for reading.
func (c *Client) serviceTicket(ctx context.Context, operation string) (*ticket, error) {
	c.ticketMu.Lock()
	defer c.ticketMu.Unlock()

	if cached, ok := c.tickets[operation]; ok {
		return cached, nil
	}

	authenticator, err := c.authenticator(c.session.key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("kerberos: granting ticket for %s: %w", operation, err)
	}
	raw, err := c.caller.Call(ctx, OperationTicketGrantingService, map[string]string{
		"ticket":        c.session.ticket,
		"authenticator": authenticator,
		"method":        operation,
	})
	if err != nil {
		var remoteError *jsonrpc.RemoteError
		if errors.As(err, &remoteError) {
			c.stale.Store(true)
		}
		return nil, fmt.Errorf("kerberos: granting ticket for %s: %w", operation, err)
	}
	granted, err := c.openGrant(OperationTicketGrantingService, raw, c.session.key)
	if err != nil {
		return nil, fmt.Errorf("kerberos: granting ticket for %s: %w", operation, err)
	}

	c.tickets[operation] = granted
	c.logger.Debug("service ticket granted", "operation", operation)
	return granted, nil
}

// evict drops the cached ticket for operation after the server refused
// a call made with it, so the next invocation negotiates a new one. A
// ticket already replaced by a concurrent caller is left alone.
func (c *Client) evict(operation string, refused *ticket) {
	c.ticketMu.Lock()
	defer c.ticketMu.Unlock()
	if c.tickets[operation] != refused {
		return
	}
	delete(c.tickets, operation)
	c.retired = append(c.retired, refused)
	c.logger.Debug("service ticket evicted", "operation", operation)
}

type authenticatorBody struct {
	Username  string  `json:"username"`
	Timestamp float64 `json:"timestamp"`
}

// authenticator returns {username, timestamp} encrypted under key.
func (c *Client) authenticator(key []byte) (string, error) {
	now := c.clock.Now()
	encoded, err := json.Marshal(authenticatorBody{
		Username:  c.identity,
		Timestamp: float64(now.UnixNano()) / 1e9,
	})
	if err != nil {
		return "", fmt.Errorf("encoding authenticator: %w", err)
	}
	sealed, err := cipher.Encrypt(append(encoded, '\n'), key)
	if err != nil {
		return "", fmt.Errorf("encrypting authenticator: %w", err)
	}
	return sealed, nil
}

// namedParams encodes params as a JSON object and checks the names
// against the catalog entry.
func namedParams(entry Operation, params any) (map[string]json.RawMessage, error) {
	named := map[string]json.RawMessage{}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, &UsageError{Operation: entry.Name, Reason: fmt.Sprintf("parameters do not encode as JSON: %v", err)}
		}
		trimmed := bytes.TrimSpace(encoded)
		switch {
		case bytes.Equal(trimmed, []byte("null")):
		case len(trimmed) > 0 && trimmed[0] == '{':
			if err := json.Unmarshal(trimmed, &named); err != nil {
				return nil, &UsageError{Operation: entry.Name, Reason: fmt.Sprintf("parameters do not decode as an object: %v", err)}
			}
		default:
			return nil, &UsageError{
				Operation: entry.Name,
				Reason:    "parameters must be named (a JSON object); positional arguments are not supported",
			}
		}
	}

	if entry.Params == nil {
		return named, nil
	}

	declared := make(map[string]bool, len(entry.Params))
	var missing []string
	for _, param := range entry.Params {
		declared[param.Name] = true
		if _, ok := named[param.Name]; param.Required && !ok {
			missing = append(missing, param.Name)
		}
	}
	var unknown []string
	for name := range named {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)

	var reasons []string
	if len(unknown) > 0 {
		reasons = append(reasons, "unknown parameters: "+strings.Join(unknown, ", "))
	}
	if len(missing) > 0 {
		reasons = append(reasons, "missing required parameters: "+strings.Join(missing, ", "))
	}
	if len(reasons) > 0 {
		return nil, &UsageError{Operation: entry.Name, Reason: strings.Join(reasons, "; ")}
	}
	return named, nil
}

// Close zeroes the long-term secret, the session key, and every cached
// service key. Invocations after Close fail. Close waits for in-flight
// protected calls.
func (c *Client) Close() error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.ticketMu.Lock()
	for _, serviceTicket := range c.tickets {
		serviceTicket.close()
	}
	for _, serviceTicket := range c.retired {
		serviceTicket.close()
	}
	c.tickets = nil
	c.retired = nil
	c.ticketMu.Unlock()

	c.session.close()
	c.session = nil
	return c.secret.Close()
}
