// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scan_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/wayfinder/lib/gametest"
	"github.com/bureau-foundation/wayfinder/lib/kerberos"
	"github.com/bureau-foundation/wayfinder/lib/recordstore"
	"github.com/bureau-foundation/wayfinder/lib/scan"
	"github.com/bureau-foundation/wayfinder/lib/testutil"
)

func newServer() *gametest.Server {
	server := gametest.NewServer()
	server.AddUser("scanner", "pw")

	alice := gametest.NewWorld("w1", "alice", "r1").AddRoom("r1", "Hall")
	alice.DataCollection = map[string]any{
		"email":      "alice@example.org",
		"first_name": "Alice",
		"last_name":  "Liddell",
		"profile":    true,
		"filiere":    "info",
		"blocked":    0,
		"flags": [][]string{
			{"maze:1a", "alice", "2026-02-01"},
			{"vault:2b", "alice", "2026-02-03"},
		},
	}
	server.AddWorld(alice)

	// Bob has no data collection yet.
	bob := gametest.NewWorld("w2", "bob", "k1").AddRoom("k1", "Kitchen")
	bob.DataCollection = "pending"
	server.AddWorld(bob)

	server.AddWorld(gametest.NewWorld("w3", "", "e1").AddRoom("e1", "Empty"))

	// A second world of alice's repeats one flag.
	again := gametest.NewWorld("w4", "alice", "c1").AddRoom("c1", "Cellar")
	again.DataCollection = map[string]any{
		"first_name": "Alice",
		"flags":      [][]string{{"maze:1a", "alice", "2026-02-01"}, {"cipher:3c", "", "2026-02-04"}},
	}
	server.AddWorld(again)

	// The protagonist stands in a room the world does not have.
	server.AddWorld(gametest.NewWorld("w5", "carol", "ghost").AddRoom("g1", "Garden"))
	return server
}

func dialer(server *gametest.Server, dials *atomic.Int32) scan.Dialer {
	return func(ctx context.Context) (scan.Session, error) {
		dials.Add(1)
		client, err := kerberos.New(ctx, kerberos.Config{
			Caller:     server,
			Credential: kerberos.Credential{Identity: "scanner", Secret: []byte("pw")},
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func TestRun(t *testing.T) {
	server := newServer()
	var dials atomic.Int32
	logger, logs := testutil.NewLogger()

	var progressMu sync.Mutex
	var progress []int
	scanner, err := scan.New(scan.Config{
		Dial:    dialer(server, &dials),
		Workers: 3,
		Logger:  logger,
		Progress: func(done, total int) {
			progressMu.Lock()
			defer progressMu.Unlock()
			if total != 5 {
				t.Errorf("progress total = %d, want 5", total)
			}
			progress = append(progress, done)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Listed != 5 || result.Unclaimed != 1 {
		t.Errorf("Listed = %d, Unclaimed = %d; want 5, 1", result.Listed, result.Unclaimed)
	}
	if got := dials.Load(); got != 4 {
		t.Errorf("sessions opened = %d, want 1 listing + 3 workers", got)
	}

	if len(result.Failures) != 1 || result.Failures[0].WorldID != "w5" || result.Failures[0].Stage != "room name" {
		t.Fatalf("Failures = %v, want w5 at room name", result.Failures)
	}
	if logs.Count("world scan failed") != 1 {
		t.Errorf("failure not logged once:\n%s", logs.String())
	}

	var worldIDs []string
	for _, position := range result.Worlds {
		worldIDs = append(worldIDs, position.WorldID)
	}
	if len(worldIDs) != 3 || worldIDs[0] != "w1" || worldIDs[1] != "w2" || worldIDs[2] != "w4" {
		t.Errorf("Worlds = %v, want w1 w2 w4", worldIDs)
	}
	if result.Worlds[0].Room != "Hall" || result.Worlds[0].Location != "r1" {
		t.Errorf("w1 position = %+v", result.Worlds[0])
	}

	if len(result.Users) != 1 || result.Users[0].Username != "alice" {
		t.Fatalf("Users = %+v, want alice only", result.Users)
	}
	if result.Users[0].Email != "alice@example.org" && result.Users[0].Email != "" {
		t.Errorf("Email = %q", result.Users[0].Email)
	}

	var flags []string
	for _, flag := range result.Flags {
		flags = append(flags, flag.Flag)
		if flag.Username != "alice" {
			t.Errorf("flag %s credited to %q, want alice", flag.Flag, flag.Username)
		}
	}
	if len(flags) != 3 || flags[0] != "cipher:3c" || flags[1] != "maze:1a" || flags[2] != "vault:2b" {
		t.Errorf("Flags = %v", flags)
	}

	progressMu.Lock()
	defer progressMu.Unlock()
	if len(progress) != 5 {
		t.Errorf("progress calls = %v, want 5", progress)
	}
}

func TestRunStripsEmail(t *testing.T) {
	server := newServer()
	var dials atomic.Int32
	scanner, err := scan.New(scan.Config{Dial: dialer(server, &dials), Workers: 1, StripEmail: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, user := range result.Users {
		if user.Email != "" {
			t.Errorf("user %s kept email %q", user.Username, user.Email)
		}
	}
}

func TestRunDialFailure(t *testing.T) {
	server := newServer()
	var dials atomic.Int32
	working := dialer(server, &dials)
	refusal := errors.New("no more sessions")

	scanner, err := scan.New(scan.Config{
		Dial: func(ctx context.Context) (scan.Session, error) {
			if dials.Load() >= 1 {
				return nil, refusal
			}
			return working(ctx)
		},
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := scanner.Run(context.Background())
		done <- err
	}()
	if err := testutil.RequireReceive(t, done, 30*time.Second, "scan to fail"); !errors.Is(err, refusal) {
		t.Errorf("Run error = %v, want the dial failure", err)
	}
}

func TestRunSurvivesWorkerDialFailure(t *testing.T) {
	server := newServer()
	var dials atomic.Int32
	working := dialer(server, &dials)
	var attempts atomic.Int32
	logger, logs := testutil.NewLogger()

	// The listing session and one worker get sessions; the other two
	// workers are refused.
	scanner, err := scan.New(scan.Config{
		Dial: func(ctx context.Context) (scan.Session, error) {
			if attempts.Add(1) > 2 {
				return nil, errors.New("no more sessions")
			}
			return working(ctx)
		},
		Workers: 3,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Listed != 5 || len(result.Worlds) != 3 || len(result.Users) != 1 {
		t.Errorf("Listed = %d, Worlds = %d, Users = %d; want 5, 3, 1",
			result.Listed, len(result.Worlds), len(result.Users))
	}
	if len(result.Failures) != 1 || result.Failures[0].WorldID != "w5" {
		t.Errorf("Failures = %v, want only w5", result.Failures)
	}
	if got := logs.Count("scan worker could not open a session"); got != 2 {
		t.Errorf("refused workers logged %d times, want 2:\n%s", got, logs.String())
	}
}

func TestRunCanceled(t *testing.T) {
	var dials atomic.Int32
	scanner, err := scan.New(scan.Config{Dial: dialer(newServer(), &dials)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scanner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestPersist(t *testing.T) {
	var dials atomic.Int32
	scanner, err := scan.New(scan.Config{Dial: dialer(newServer(), &dials), Workers: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	store, err := recordstore.Open(recordstore.Config{Path: filepath.Join(t.TempDir(), "records.db")})
	if err != nil {
		t.Fatalf("recordstore.Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	summary, err := result.Persist(ctx, store)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if want := (scan.PersistSummary{UsersAdded: 1, WorldsAdded: 3, FlagsAdded: 3}); summary != want {
		t.Errorf("first Persist = %+v, want %+v", summary, want)
	}

	summary, err = result.Persist(ctx, store)
	if err != nil {
		t.Fatalf("second Persist: %v", err)
	}
	if summary != (scan.PersistSummary{}) {
		t.Errorf("second Persist = %+v, want no changes", summary)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if want := (recordstore.Stats{Users: 1, Worlds: 3, FlagBases: 3}); stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

func TestNewRequiresDial(t *testing.T) {
	if _, err := scan.New(scan.Config{}); err == nil {
		t.Error("New succeeded without Dial")
	}
}
