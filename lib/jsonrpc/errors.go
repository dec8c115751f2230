// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// TransportError reports a failed exchange: the request could not be
// sent, the response could not be read, the deadline passed, or the
// server answered with a non-2xx status.
type TransportError struct {
	Method string

	// StatusCode is the HTTP status, or 0 when no response arrived.
	StatusCode int

	// Body is a bounded excerpt of a non-2xx response body.
	Body string

	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("jsonrpc: %s: http status %d: %s", e.Method, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("jsonrpc: %s: http status %d", e.Method, e.StatusCode)
	default:
		return fmt.Sprintf("jsonrpc: %s: %v", e.Method, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable reports whether the call may be repeated: the server did
// not process the request, or failed in a way unrelated to its content.
// A call abandoned because the caller canceled its context is not
// retryable.
func (e *TransportError) IsRetryable() bool { return !errors.Is(e.Err, context.Canceled) }

// Timeout reports whether the exchange failed because a deadline passed.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netError net.Error
	return errors.As(e.Err, &netError) && netError.Timeout()
}

// RemoteError is a JSON-RPC response whose "error" member was set. The
// game server does not always follow the JSON-RPC error object shape,
// so the payload is kept as raw JSON.
type RemoteError struct {
	Method  string
	Payload json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("jsonrpc: %s: remote error: %s", e.Method, e.Payload)
}

// Message extracts a human-readable message from the payload: the
// "message" field of an error object, the payload itself when it is a
// string, or the raw JSON otherwise.
func (e *RemoteError) Message() string {
	var object struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(e.Payload, &object) == nil && object.Message != "" {
		return object.Message
	}
	var text string
	if json.Unmarshal(e.Payload, &text) == nil {
		return text
	}
	return string(e.Payload)
}

// IsRetryable reports false: the server rejected the request.
func (e *RemoteError) IsRetryable() bool { return false }

// ProtocolError reports a response (or a decrypted result) whose shape
// does not match what the protocol requires. Higher layers reuse it for
// their own decode steps.
type ProtocolError struct {
	// Operation names the step that failed, such as "room.neighbor" or
	// "ticket-granting-service response".
	Operation string

	Detail string

	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jsonrpc: %s: %s: %v", e.Operation, e.Detail, e.Err)
	}
	return fmt.Sprintf("jsonrpc: %s: %s", e.Operation, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsRetryable reports false.
func (e *ProtocolError) IsRetryable() bool { return false }
