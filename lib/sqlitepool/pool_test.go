// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wayfinder/lib/sqlitepool"
)

const counterSchema = `CREATE TABLE IF NOT EXISTS counters (name TEXT PRIMARY KEY, value INTEGER NOT NULL);`

func openTestPool(t *testing.T, config sqlitepool.Config) *sqlitepool.Pool {
	t.Helper()
	if config.Path == "" {
		config.Path = filepath.Join(t.TempDir(), "test.db")
	}
	pool, err := sqlitepool.Open(config)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func readValue(t *testing.T, pool *sqlitepool.Pool, name string) (int64, bool) {
	t.Helper()
	var value int64
	var found bool
	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM counters WHERE name = ?", &sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value, found = stmt.ColumnInt64(0), true
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return value, found
}

func TestPragmasApplied(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{})

	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		var journalMode string
		var synchronous int
		if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				journalMode = stmt.ColumnText(0)
				return nil
			},
		}); err != nil {
			return err
		}
		if err := sqlitex.ExecuteTransient(conn, "PRAGMA synchronous", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				synchronous = stmt.ColumnInt(0)
				return nil
			},
		}); err != nil {
			return err
		}
		if journalMode != "wal" {
			return fmt.Errorf("journal_mode = %q, want wal", journalMode)
		}
		if synchronous != 1 {
			return fmt.Errorf("synchronous = %d, want 1 (NORMAL)", synchronous)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSchemaApplied(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{Schema: counterSchema})

	err := pool.Write(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "INSERT INTO counters (name, value) VALUES ('a', 1)", nil)
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if value, found := readValue(t, pool, "a"); !found || value != 1 {
		t.Errorf("value = %d, %v; want 1", value, found)
	}
}

func TestWriteRollsBack(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{Schema: counterSchema})
	failure := errors.New("abort")

	err := pool.Write(context.Background(), func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "INSERT INTO counters (name, value) VALUES ('b', 2)", nil); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Write error = %v, want the callback's error", err)
	}
	if _, found := readValue(t, pool, "b"); found {
		t.Error("row from a failed Write was committed")
	}
}

func TestConcurrentWriters(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{Schema: counterSchema})
	if err := pool.Write(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "INSERT INTO counters (name, value) VALUES ('hits', 0)", nil)
	}); err != nil {
		t.Fatal(err)
	}

	const goroutines = 16
	var waitGroup sync.WaitGroup
	failures := make(chan error, goroutines)
	for range goroutines {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			failures <- pool.Write(context.Background(), func(conn *sqlite.Conn) error {
				return sqlitex.Execute(conn, "UPDATE counters SET value = value + 1 WHERE name = 'hits'", nil)
			})
		}()
	}
	waitGroup.Wait()
	close(failures)
	for err := range failures {
		if err != nil {
			t.Error(err)
		}
	}

	if value, _ := readValue(t, pool, "hits"); value != goroutines {
		t.Errorf("hits = %d, want %d", value, goroutines)
	}
}

func TestBadSchemaSurfacesOnTake(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{Schema: "CREATE TABLE broken ("})
	if _, err := pool.Take(context.Background()); err == nil {
		t.Fatal("Take succeeded with an invalid schema")
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("Open succeeded without a Path")
	}
}

func TestTakeHonorsContext(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{PoolSize: 1})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("Take succeeded on an exhausted pool with a canceled context")
	}
}
