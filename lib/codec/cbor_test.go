// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sampleGraph struct {
	Version int                          `cbor:"version"`
	Rooms   map[string]map[string]string `cbor:"rooms"`
}

func TestMarshalDeterministic(t *testing.T) {
	graph := sampleGraph{
		Version: 1,
		Rooms: map[string]map[string]string{
			"Hall":    {"N": "Library", "E": "Kitchen", "DOWN": "Cellar"},
			"Library": {"S": "Hall"},
			"Kitchen": {"W": "Hall"},
			"Cellar":  {"UP": "Hall"},
		},
	}

	first, err := Marshal(graph)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(graph)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal produced different bytes for the same value")
		}
	}

	var decoded sampleGraph
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Rooms["Hall"]["DOWN"] != "Cellar" || len(decoded.Rooms) != 4 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestUnmarshalAnyProducesStringMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"rooms": map[string]any{"Hall": map[string]any{"N": "Library"}}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, err := json.Marshal(decoded); err != nil {
		t.Errorf("decoded value is not JSON-encodable: %v", err)
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"a": 1, "a": 2}
	data := []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}
	var decoded map[string]int
	if err := Unmarshal(data, &decoded); err == nil {
		t.Errorf("Unmarshal accepted duplicate keys: %v", decoded)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]int{"version": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"version": 1`) {
		t.Errorf("Diagnose = %q", diagnostic)
	}
}
