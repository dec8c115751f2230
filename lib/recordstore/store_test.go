// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/wayfinder/lib/clock"
	"github.com/bureau-foundation/wayfinder/lib/recordstore"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T) (*recordstore.Store, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	store, err := recordstore.Open(recordstore.Config{
		Path:  filepath.Join(t.TempDir(), "records.db"),
		Clock: fake,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store, fake
}

func boolPointer(value bool) *bool { return &value }

func mustChange(t *testing.T, want recordstore.Change) func(recordstore.Change, error) {
	t.Helper()
	return func(got recordstore.Change, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if got != want {
			t.Fatalf("change = %s, want %s", got, want)
		}
	}
}

func TestSaveUserInsertsOnce(t *testing.T) {
	store, fake := openStore(t)
	ctx := context.Background()

	mustChange(t, recordstore.Inserted)(store.SaveUser(ctx, recordstore.User{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Profile:   boolPointer(true),
		Blocked:   boolPointer(false),
	}))
	fake.Advance(time.Hour)
	// A second sighting never rewrites the profile.
	mustChange(t, recordstore.Unchanged)(store.SaveUser(ctx, recordstore.User{Username: "alice", FirstName: "Mallory"}))

	detail, err := store.UserDetail(ctx, "alice")
	if err != nil {
		t.Fatalf("UserDetail: %v", err)
	}
	if !detail.Profiled || detail.User.FirstName != "Alice" {
		t.Errorf("detail = %+v", detail.User)
	}
	if detail.User.Profile == nil || !*detail.User.Profile || detail.User.Blocked == nil || *detail.User.Blocked {
		t.Errorf("booleans = profile %v, blocked %v", detail.User.Profile, detail.User.Blocked)
	}
	if detail.User.Filiere != "" || detail.User.Email != "" {
		t.Errorf("missing fields read back as %q, %q", detail.User.Filiere, detail.User.Email)
	}
	if !detail.User.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt = %v, want %v", detail.User.CreatedAt, epoch)
	}
}

func TestSaveWorldUpdatesPosition(t *testing.T) {
	store, fake := openStore(t)
	ctx := context.Background()

	position := recordstore.Position{WorldID: "w1", Username: "alice", Location: "r1", Room: "Hall"}
	mustChange(t, recordstore.Inserted)(store.SaveWorld(ctx, position))
	mustChange(t, recordstore.Unchanged)(store.SaveWorld(ctx, position))

	fake.Advance(time.Minute)
	position.Location, position.Room = "r2", "Library"
	mustChange(t, recordstore.Updated)(store.SaveWorld(ctx, position))

	where, err := store.WhereIs(ctx, "alice")
	if err != nil {
		t.Fatalf("WhereIs: %v", err)
	}
	if where == nil || where.Location != "r2" || where.Room != "Library" {
		t.Fatalf("WhereIs = %+v, want r2 Library", where)
	}
	if !where.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt = %v, want the first sighting %v", where.CreatedAt, epoch)
	}
}

func TestWhereIsPicksNewestWorld(t *testing.T) {
	store, fake := openStore(t)
	ctx := context.Background()

	mustChange(t, recordstore.Inserted)(store.SaveWorld(ctx, recordstore.Position{WorldID: "old", Username: "alice", Location: "r1"}))
	fake.Advance(time.Second)
	mustChange(t, recordstore.Inserted)(store.SaveWorld(ctx, recordstore.Position{WorldID: "new", Username: "alice", Location: "r9"}))

	where, err := store.WhereIs(ctx, "alice")
	if err != nil || where == nil || where.WorldID != "new" {
		t.Fatalf("WhereIs = %+v, %v; want world new", where, err)
	}

	nowhere, err := store.WhereIs(ctx, "bob")
	if err != nil || nowhere != nil {
		t.Errorf("WhereIs(bob) = %+v, %v; want nil", nowhere, err)
	}
}

func TestSaveValidation(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	if _, err := store.SaveUser(ctx, recordstore.User{}); err == nil {
		t.Error("SaveUser without username succeeded")
	}
	if _, err := store.SaveWorld(ctx, recordstore.Position{Username: "alice"}); err == nil {
		t.Error("SaveWorld without world id succeeded")
	}
	if _, err := store.SaveWorld(ctx, recordstore.Position{WorldID: "w1"}); err == nil {
		t.Error("SaveWorld without username succeeded")
	}
	if _, err := store.SaveFlag(ctx, recordstore.Flag{Username: "alice"}); err == nil {
		t.Error("SaveFlag without flag succeeded")
	}
}

func seedFlags(t *testing.T, store *recordstore.Store) {
	t.Helper()
	ctx := context.Background()
	flags := []recordstore.Flag{
		{Flag: "maze:1a2b", Username: "alice", Date: "2026-02-01"},
		{Flag: "maze:3c4d", Username: "bob", Date: "2026-02-02"},
		{Flag: "vault:9f", Username: "alice", Date: "2026-02-03"},
		{Flag: "cipher:77", Username: "bob", Date: "2026-01-15"},
		{Flag: "nobase", Username: "alice", Date: "2026-01-01"},
	}
	for _, flag := range flags {
		mustChange(t, recordstore.Inserted)(store.SaveFlag(ctx, flag))
	}
	// Flags are unique across users.
	mustChange(t, recordstore.Unchanged)(store.SaveFlag(ctx, recordstore.Flag{Flag: "maze:1a2b", Username: "bob"}))
}

func TestStats(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	seedFlags(t, store)
	mustChange(t, recordstore.Inserted)(store.SaveUser(ctx, recordstore.User{Username: "alice"}))
	mustChange(t, recordstore.Inserted)(store.SaveUser(ctx, recordstore.User{Username: "bob"}))
	mustChange(t, recordstore.Inserted)(store.SaveWorld(ctx, recordstore.Position{WorldID: "w1", Username: "alice"}))

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if want := (recordstore.Stats{Users: 2, Worlds: 1, FlagBases: 3}); stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

func TestUsersOrderAndCounts(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	seedFlags(t, store)
	for _, name := range []string{"bob", "Carol", "alice"} {
		mustChange(t, recordstore.Inserted)(store.SaveUser(ctx, recordstore.User{Username: name}))
	}

	users, err := store.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	var names []string
	counts := make(map[string]int)
	for _, user := range users {
		names = append(names, user.Username)
		counts[user.Username] = user.FlagCount
	}
	if !slices.Equal(names, []string{"alice", "bob", "Carol"}) {
		t.Errorf("order = %q, want case-insensitive", names)
	}
	if counts["alice"] != 3 || counts["bob"] != 2 || counts["Carol"] != 0 {
		t.Errorf("flag counts = %v", counts)
	}
}

func TestUserFlagsNewestFirst(t *testing.T) {
	store, _ := openStore(t)
	seedFlags(t, store)

	flags, err := store.UserFlags(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserFlags: %v", err)
	}
	var names []string
	for _, flag := range flags {
		names = append(names, flag.Flag)
	}
	if !slices.Equal(names, []string{"vault:9f", "maze:1a2b", "nobase"}) {
		t.Errorf("flags = %q", names)
	}
}

func TestUserDetailWithoutProfile(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	seedFlags(t, store)

	detail, err := store.UserDetail(ctx, "bob")
	if err != nil {
		t.Fatalf("UserDetail: %v", err)
	}
	if detail.Profiled || detail.User.Username != "bob" || len(detail.Flags) != 2 || detail.LastPosition != nil {
		t.Errorf("detail = %+v", detail)
	}

	if _, err := store.UserDetail(ctx, "mallory"); !errors.Is(err, recordstore.ErrUserNotFound) {
		t.Errorf("UserDetail(mallory) error = %v, want ErrUserNotFound", err)
	}
}

func TestCompareFlags(t *testing.T) {
	store, _ := openStore(t)
	seedFlags(t, store)

	comparison, err := store.CompareFlags(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("CompareFlags: %v", err)
	}
	if !slices.Equal(comparison.Ahead, []string{"vault"}) ||
		!slices.Equal(comparison.Behind, []string{"cipher"}) ||
		!slices.Equal(comparison.Common, []string{"maze"}) {
		t.Errorf("comparison = %+v", comparison)
	}

	if _, err := store.CompareFlags(context.Background(), "alice", ""); err == nil {
		t.Error("CompareFlags with one username succeeded")
	}
}

func TestFlagBase(t *testing.T) {
	tests := []struct {
		flag string
		base string
		ok   bool
	}{
		{"maze:1a2b", "maze", true},
		{"a:b:c", "a", true},
		{":x", "", true},
		{"nobase", "", false},
	}
	for _, test := range tests {
		base, ok := recordstore.FlagBase(test.flag)
		if base != test.base || ok != test.ok {
			t.Errorf("FlagBase(%q) = %q, %v; want %q, %v", test.flag, base, ok, test.base, test.ok)
		}
	}
}
