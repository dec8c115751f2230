// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomgraph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/wayfinder/lib/codec"
)

const (
	cacheMagic = "WFNG"

	// CacheVersion is the only cache format this package reads and
	// writes.
	CacheVersion = 1

	// maxPayloadSize bounds the uncompressed payload a header may
	// declare. A million-room graph fits well below it.
	maxPayloadSize = 256 << 20
)

// CacheError reports a cache file that could not be decoded.
type CacheError struct {
	Reason string
	Err    error
}

func (e *CacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("roomgraph: invalid graph cache: %s: %v", e.Reason, e.Err)
	}
	return "roomgraph: invalid graph cache: " + e.Reason
}

func (e *CacheError) Unwrap() error { return e.Err }

// cacheDocument is the CBOR payload of a cache file.
type cacheDocument struct {
	Version     int                          `cbor:"version"`
	Fingerprint string                       `cbor:"fingerprint"`
	Rooms       map[string]map[string]string `cbor:"rooms"`
}

// Cache is a decoded cache file.
type Cache struct {
	Version     int
	Compression Compression
	Fingerprint string

	// Payload is the uncompressed CBOR document, for diagnostics.
	Payload []byte

	Graph *NameGraph
}

// WriteGraph encodes graph to w. Incompressible payloads are stored
// uncompressed regardless of compression.
func WriteGraph(w io.Writer, graph *NameGraph, compression Compression) error {
	payload, err := codec.Marshal(cacheDocument{
		Version:     CacheVersion,
		Fingerprint: graph.Fingerprint(),
		Rooms:       graph.table(),
	})
	if err != nil {
		return fmt.Errorf("roomgraph: encoding graph: %w", err)
	}

	body, err := compress(payload, compression)
	if errors.Is(err, errIncompressible) {
		body, compression = payload, CompressionNone
	} else if err != nil {
		return fmt.Errorf("roomgraph: %w", err)
	}

	header := make([]byte, 0, len(cacheMagic)+2+binary.MaxVarintLen64)
	header = append(header, cacheMagic...)
	header = append(header, CacheVersion, byte(compression))
	header = binary.AppendUvarint(header, uint64(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("roomgraph: writing cache header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("roomgraph: writing cache payload: %w", err)
	}
	return nil
}

// ReadCache decodes a cache file and verifies its fingerprint.
func ReadCache(r io.Reader) (*Cache, error) {
	reader := bufio.NewReader(r)

	header := make([]byte, len(cacheMagic)+2)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, &CacheError{Reason: "truncated header", Err: err}
	}
	if string(header[:len(cacheMagic)]) != cacheMagic {
		return nil, &CacheError{Reason: fmt.Sprintf("bad magic %q", header[:len(cacheMagic)])}
	}
	version := int(header[len(cacheMagic)])
	if version != CacheVersion {
		return nil, &CacheError{Reason: fmt.Sprintf("unsupported format version %d", version)}
	}
	compression := Compression(header[len(cacheMagic)+1])
	size, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, &CacheError{Reason: "truncated payload size", Err: err}
	}
	if size > maxPayloadSize {
		return nil, &CacheError{Reason: fmt.Sprintf("payload size %d exceeds limit", size)}
	}

	// Compressed bodies are written only when smaller than the payload,
	// so no valid body exceeds size.
	body, err := io.ReadAll(io.LimitReader(reader, int64(size)+1))
	if err != nil {
		return nil, fmt.Errorf("roomgraph: reading cache payload: %w", err)
	}
	if uint64(len(body)) > size {
		return nil, &CacheError{Reason: fmt.Sprintf("payload body is longer than the %d bytes the header declares", size)}
	}
	payload, err := decompress(body, compression, int(size))
	if err != nil {
		return nil, &CacheError{Reason: "payload", Err: err}
	}

	var document cacheDocument
	if err := codec.Unmarshal(payload, &document); err != nil {
		return nil, &CacheError{Reason: "payload is not a graph document", Err: err}
	}
	if document.Version != CacheVersion {
		return nil, &CacheError{Reason: fmt.Sprintf("document version %d does not match header", document.Version)}
	}
	graph := fromRooms(document.Rooms)
	if fingerprint := graph.Fingerprint(); fingerprint != document.Fingerprint {
		return nil, &CacheError{Reason: fmt.Sprintf("fingerprint mismatch: stored %s, computed %s", document.Fingerprint, fingerprint)}
	}

	return &Cache{
		Version:     version,
		Compression: compression,
		Fingerprint: document.Fingerprint,
		Payload:     payload,
		Graph:       graph,
	}, nil
}

// ReadGraph decodes a cache file and returns its graph.
func ReadGraph(r io.Reader) (*NameGraph, error) {
	cache, err := ReadCache(r)
	if err != nil {
		return nil, err
	}
	return cache.Graph, nil
}

// SaveFile writes graph to path atomically: the cache is written to a
// temporary file in the same directory, synced, and renamed into place.
func SaveFile(path string, graph *NameGraph, compression Compression) error {
	var buffer bytes.Buffer
	if err := WriteGraph(&buffer, graph, compression); err != nil {
		return err
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("roomgraph: creating temporary cache file: %w", err)
	}
	if _, err := file.Write(buffer.Bytes()); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("roomgraph: writing temporary cache file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("roomgraph: syncing temporary cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("roomgraph: closing temporary cache file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("roomgraph: renaming cache file into place: %w", err)
	}

	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// LoadFile reads the cache file at path.
func LoadFile(path string) (*Cache, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roomgraph: opening cache: %w", err)
	}
	defer file.Close()
	return ReadCache(file)
}
