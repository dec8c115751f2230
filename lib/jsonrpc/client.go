// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bureau-foundation/wayfinder/lib/clock"
	"github.com/bureau-foundation/wayfinder/lib/netutil"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for creating a Client.
type Config struct {
	// Endpoint is the absolute URL every request is POSTed to.
	Endpoint string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient is used for all requests. If nil, http.DefaultClient is
	// used.
	HTTPClient *http.Client

	// Clock supplies request ids. If nil, clock.Real() is used.
	Clock clock.Clock

	// Logger receives one debug record per call. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Client sends JSON-RPC 2.0 requests to one endpoint.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger

	idMu   sync.Mutex
	lastID int64
}

// New validates config and returns a Client. No request is made.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("jsonrpc: Endpoint is required")
	}
	parsed, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: invalid Endpoint %q: %w", config.Endpoint, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("jsonrpc: Endpoint %q must be an http or https URL", config.Endpoint)
	}
	if config.Timeout < 0 {
		return nil, fmt.Errorf("jsonrpc: Timeout must not be negative, got %s", config.Timeout)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		endpoint:   config.Endpoint,
		timeout:    timeout,
		httpClient: httpClient,
		clock:      clk,
		logger:     logger,
	}, nil
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      int64           `json:"id"`
}

// Call invokes method with params and returns the raw "result" member.
// params must encode as a JSON object; nil sends {}.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	encodedParams, err := encodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: %s: %w", method, err)
	}

	id := c.nextID()
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  encodedParams,
		ID:      id,
	})
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: %s: encoding request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: %s: creating request: %w", method, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	started := time.Now()
	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		c.logger.Debug("jsonrpc call failed", "method", method, "id", id, "error", err)
		return nil, &TransportError{Method: method, Err: withContextError(ctx, err)}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		excerpt := netutil.ErrorBody(response.Body)
		c.logger.Debug("jsonrpc call rejected", "method", method, "id", id, "status", response.StatusCode)
		return nil, &TransportError{
			Method:     method,
			StatusCode: response.StatusCode,
			Body:       excerpt,
			Err:        fmt.Errorf("http status %d", response.StatusCode),
		}
	}

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &TransportError{Method: method, StatusCode: response.StatusCode, Err: withContextError(ctx, err)}
	}
	c.logger.Debug("jsonrpc call",
		"method", method,
		"id", id,
		"duration", time.Since(started),
		"bytes", len(responseBody),
	)

	return decodeResponse(method, responseBody)
}

// withContextError makes ctx's error matchable through err when ctx
// ended the exchange.
func withContextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// nextID returns the current time in milliseconds, or one more than the
// previous id when the clock has not moved past it.
func (c *Client) nextID() int64 {
	c.idMu.Lock()
	defer c.idMu.Unlock()

	id := c.clock.Now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}

func encodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage(`{}`), nil
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	trimmed := bytes.TrimSpace(encoded)
	if bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`), nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("params must encode as a JSON object, got %s", firstToken(trimmed))
	}
	return encoded, nil
}

func firstToken(encoded []byte) string {
	if len(encoded) == 0 {
		return "nothing"
	}
	switch encoded[0] {
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	default:
		return "a number"
	}
}

func decodeResponse(method string, body []byte) (json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil || members == nil {
		return nil, &ProtocolError{
			Operation: method,
			Detail:    "response is not a JSON object",
			Err:       err,
		}
	}

	if payload, ok := members["error"]; ok && !bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return nil, &RemoteError{Method: method, Payload: payload}
	}
	result, ok := members["result"]
	if !ok {
		return nil, &ProtocolError{Operation: method, Detail: "response has neither result nor error"}
	}
	return result, nil
}
