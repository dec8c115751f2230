// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kerberos

import "testing"

func TestDefaultCatalogClassification(t *testing.T) {
	catalog := DefaultCatalog()

	protected := []string{
		"item.move", "kerberos.echo", "protagonist.move", "protagonist.think",
		"room.neighbor", "room.directions", "world.create",
	}
	for _, name := range protected {
		if got := catalog.Protection(name); got != Protected {
			t.Errorf("%s: protection = %s, want protected", name, got)
		}
	}

	unprotected := []string{
		"action.do", "action.is_done", "chip.whisperer", "chip.whisperer-pro", "echo",
		"item.description", "item.gender", "item.location", "item.matches", "item.title",
		OperationAuthenticationService, OperationTicketGrantingService, "man",
		"protagonist.data-collection", "protagonist.location", "protagonist.sessions",
		"protagonist.username", "room.description", "room.find-by-name", "room.items",
		"room.name", "server.history", "server.status", "session-store.set",
		"walkman.get-tracks", "world.destroy", "world.list",
	}
	for _, name := range unprotected {
		if got := catalog.Protection(name); got != Unprotected {
			t.Errorf("%s: protection = %s, want unprotected", name, got)
		}
	}

	if got := catalog.Protection("session-store.get"); got != Restricted {
		t.Errorf("session-store.get: protection = %s, want restricted", got)
	}
	if got := catalog.Protection("nonexistent"); got != Unknown {
		t.Errorf("nonexistent: protection = %s, want unknown", got)
	}

	if got, want := len(catalog.Operations()), len(protected)+len(unprotected)+1; got != want {
		t.Errorf("catalog has %d operations, want %d", got, want)
	}
}

func TestCatalogOperationsSorted(t *testing.T) {
	operations := DefaultCatalog().Operations()
	for index := 1; index < len(operations); index++ {
		if operations[index-1].Name >= operations[index].Name {
			t.Fatalf("operations not sorted: %q before %q", operations[index-1].Name, operations[index].Name)
		}
	}
}

func TestNamedParams(t *testing.T) {
	entry, _ := DefaultCatalog().Lookup("room.neighbor")

	type neighborParams struct {
		WorldID   string `json:"world_id"`
		Room      string `json:"room"`
		Direction string `json:"direction"`
	}
	named, err := namedParams(entry, neighborParams{WorldID: "w1", Room: "r1", Direction: "N"})
	if err != nil {
		t.Fatalf("namedParams(struct): %v", err)
	}
	if string(named["direction"]) != `"N"` {
		t.Errorf("direction = %s", named["direction"])
	}

	unknown, _ := DefaultCatalog().Lookup("protagonist.sessions")
	named, err = namedParams(unknown, nil)
	if err != nil || len(named) != 0 {
		t.Errorf("namedParams(nil) = %v, %v; want empty map", named, err)
	}

	var nilMap map[string]string
	if _, err := namedParams(unknown, nilMap); err != nil {
		t.Errorf("namedParams(nil map): %v", err)
	}

	_, err = namedParams(entry, map[string]string{"world_id": "w1", "extra": "x"})
	usage, ok := err.(*UsageError)
	if !ok {
		t.Fatalf("err = %v, want *UsageError", err)
	}
	want := "unknown parameters: extra; missing required parameters: room, direction"
	if usage.Reason != want {
		t.Errorf("Reason = %q, want %q", usage.Reason, want)
	}
}
