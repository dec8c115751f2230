// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package world

import (
	"encoding/json"
	"testing"
)

func TestParseProfile(t *testing.T) {
	raw := json.RawMessage(`{
		"email": "alice@example.org",
		"first_name": "Alice",
		"last_name": "Liddell",
		"profile": true,
		"filiere": "crypto",
		"blocked": 0,
		"flags": [
			["FLAG-A:1", "alice", "2025-03-01T10:00:00Z"],
			["FLAG-B:2", "alice", 1740823200],
			["short", "alice"],
			"not-a-list",
			[null, "alice", "2025-03-02"]
		]
	}`)

	profile := ParseProfile(raw)
	if profile == nil {
		t.Fatal("ParseProfile returned nil for an object")
	}
	if profile.Email != "alice@example.org" || profile.FirstName != "Alice" || profile.LastName != "Liddell" || profile.Filiere != "crypto" {
		t.Errorf("profile text fields = %+v", profile)
	}
	if profile.HasProfile == nil || !*profile.HasProfile {
		t.Errorf("HasProfile = %v, want true", profile.HasProfile)
	}
	if profile.Blocked == nil || *profile.Blocked {
		t.Errorf("Blocked = %v, want false", profile.Blocked)
	}

	want := []Flag{
		{Name: "FLAG-A:1", Username: "alice", Date: "2025-03-01T10:00:00Z"},
		{Name: "FLAG-B:2", Username: "alice", Date: "1740823200"},
	}
	if len(profile.Flags) != len(want) {
		t.Fatalf("Flags = %+v, want %+v", profile.Flags, want)
	}
	for index := range want {
		if profile.Flags[index] != want[index] {
			t.Errorf("Flags[%d] = %+v, want %+v", index, profile.Flags[index], want[index])
		}
	}
}

func TestParseProfileMissingFields(t *testing.T) {
	profile := ParseProfile(json.RawMessage(`{"flags": "none"}`))
	if profile == nil {
		t.Fatal("ParseProfile returned nil for an object")
	}
	if profile.Email != "" || profile.HasProfile != nil || profile.Blocked != nil || len(profile.Flags) != 0 {
		t.Errorf("profile = %+v, want zero values", profile)
	}
}

func TestParseProfileNotAnObject(t *testing.T) {
	for _, raw := range []string{`null`, `"text"`, `[1,2]`, `42`} {
		if profile := ParseProfile(json.RawMessage(raw)); profile != nil {
			t.Errorf("ParseProfile(%s) = %+v, want nil", raw, profile)
		}
	}
}
