// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds the HTTP response reads made by the JSON-RPC
// transport.
//
// Every body read from the game server goes through ReadResponse (for
// success bodies) or ErrorBody (for the excerpt attached to a transport
// error). Neither ever buffers more than its limit, so a misbehaving
// server cannot exhaust client memory.
package netutil

import (
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize bounds a JSON-RPC response body: 32 MB. Room graphs
// and world listings are orders of magnitude smaller.
const MaxResponseSize int64 = 32 << 20

// MaxErrorBodySize bounds the body excerpt kept for diagnostics when the
// server answers with a non-2xx status.
const MaxErrorBodySize = 4 << 10

// ResponseTooLargeError is returned by ReadResponse when the body
// exceeds the limit.
type ResponseTooLargeError struct {
	Limit int64
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeds %d bytes", e.Limit)
}

// ReadResponse reads body up to MaxResponseSize bytes. A body longer
// than the limit is an error rather than a silent truncation: a
// truncated JSON document would surface later as a confusing parse
// failure.
func ReadResponse(body io.Reader) ([]byte, error) {
	return readLimited(body, MaxResponseSize)
}

func readLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, &ResponseTooLargeError{Limit: limit}
	}
	return data, nil
}

// ErrorBody returns at most MaxErrorBodySize bytes of body as a string,
// with invalid UTF-8 (such as a rune cut at the limit) dropped. Read
// errors are ignored: a partial excerpt is still useful in an error
// message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBodySize))
	return strings.ToValidUTF8(string(data), "")
}
