// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wayfinder/lib/clock"
	"github.com/bureau-foundation/wayfinder/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	first_name TEXT,
	last_name  TEXT,
	email      TEXT,
	profile    INTEGER,
	filiere    TEXT,
	blocked    INTEGER,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS worlds (
	world_id   TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	location   TEXT,
	room       TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS worlds_username ON worlds (username, created_at);
CREATE TABLE IF NOT EXISTS flags (
	flag       TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	date       TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS flags_username ON flags (username);
`

// timeLayout is fixed-width so created_at sorts chronologically as
// text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrUserNotFound is returned by UserDetail for a username that appears
// in no table.
var ErrUserNotFound = errors.New("user not found")

// Change reports what a Save call did.
type Change int

const (
	Inserted Change = iota + 1
	Updated
	Unchanged
)

func (c Change) String() string {
	switch c {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "invalid"
	}
}

// User is a player's profile as collected from a world.
type User struct {
	Username  string    `json:"username"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Profile   *bool     `json:"profile,omitempty"`
	Filiere   string    `json:"filiere,omitempty"`
	Blocked   *bool     `json:"blocked,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Position is where a world's protagonist was last seen.
type Position struct {
	WorldID   string    `json:"world_id"`
	Username  string    `json:"username"`
	Location  string    `json:"location,omitempty"`
	Room      string    `json:"room,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Flag is a captured flag.
type Flag struct {
	Flag      string    `json:"flag"`
	Username  string    `json:"username"`
	Date      string    `json:"date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds configuration for opening a Store.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// PoolSize is passed to sqlitepool.
	PoolSize int

	// Clock stamps created_at. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Store is the record database. It is safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens or creates the database at config.Path.
func Open(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("recordstore: Path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeSource := config.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     config.Path,
		PoolSize: config.PoolSize,
		Schema:   schema,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("recordstore: %w", err)
	}
	return &Store{pool: pool, clock: timeSource, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) now() string {
	return s.clock.Now().UTC().Format(timeLayout)
}

// SaveUser inserts user unless a row for the username exists. Existing
// rows are never modified.
func (s *Store) SaveUser(ctx context.Context, user User) (Change, error) {
	if user.Username == "" {
		return 0, fmt.Errorf("recordstore: username is required")
	}
	change := Unchanged
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO users (username, first_name, last_name, email, profile, filiere, blocked, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (username) DO NOTHING`,
			&sqlitex.ExecOptions{Args: []any{
				user.Username,
				nullable(user.FirstName),
				nullable(user.LastName),
				nullable(user.Email),
				nullableBool(user.Profile),
				nullable(user.Filiere),
				nullableBool(user.Blocked),
				s.now(),
			}})
		if err != nil {
			return err
		}
		if conn.Changes() > 0 {
			change = Inserted
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("recordstore: saving user %s: %w", user.Username, err)
	}
	if change == Inserted {
		s.logger.Debug("user recorded", "username", user.Username)
	}
	return change, nil
}

// SaveWorld records a world's protagonist and position. A known world
// is updated only when one of username, location, or room differs;
// created_at keeps the first sighting.
func (s *Store) SaveWorld(ctx context.Context, position Position) (Change, error) {
	if position.WorldID == "" {
		return 0, fmt.Errorf("recordstore: world id is required")
	}
	if position.Username == "" {
		return 0, fmt.Errorf("recordstore: username is required for world %s", position.WorldID)
	}

	var change Change
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		var found bool
		var username, location, room string
		err := sqlitex.Execute(conn, "SELECT username, location, room FROM worlds WHERE world_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{position.WorldID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					username, location, room = stmt.ColumnText(0), stmt.ColumnText(1), stmt.ColumnText(2)
					return nil
				},
			})
		if err != nil {
			return err
		}

		switch {
		case !found:
			change = Inserted
			return sqlitex.Execute(conn, `
				INSERT INTO worlds (world_id, username, location, room, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{
					position.WorldID,
					position.Username,
					nullable(position.Location),
					nullable(position.Room),
					s.now(),
				}})
		case username == position.Username && location == position.Location && room == position.Room:
			change = Unchanged
			return nil
		default:
			change = Updated
			return sqlitex.Execute(conn, "UPDATE worlds SET username = ?, location = ?, room = ? WHERE world_id = ?",
				&sqlitex.ExecOptions{Args: []any{
					position.Username,
					nullable(position.Location),
					nullable(position.Room),
					position.WorldID,
				}})
		}
	})
	if err != nil {
		return 0, fmt.Errorf("recordstore: saving world %s: %w", position.WorldID, err)
	}
	if change != Unchanged {
		s.logger.Debug("world recorded", "world_id", position.WorldID, "change", change.String())
	}
	return change, nil
}

// SaveFlag inserts flag unless it is already recorded, for any user.
func (s *Store) SaveFlag(ctx context.Context, flag Flag) (Change, error) {
	if flag.Flag == "" {
		return 0, fmt.Errorf("recordstore: flag is required")
	}
	if flag.Username == "" {
		return 0, fmt.Errorf("recordstore: username is required for flag %s", flag.Flag)
	}
	change := Unchanged
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO flags (flag, username, date, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (flag) DO NOTHING`,
			&sqlitex.ExecOptions{Args: []any{flag.Flag, flag.Username, nullable(flag.Date), s.now()}})
		if err != nil {
			return err
		}
		if conn.Changes() > 0 {
			change = Inserted
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("recordstore: saving flag for %s: %w", flag.Username, err)
	}
	return change, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableBool(value *bool) any {
	if value == nil {
		return nil
	}
	return *value
}

func columnBool(stmt *sqlite.Stmt, column int) *bool {
	if stmt.ColumnType(column) == sqlite.TypeNull {
		return nil
	}
	value := stmt.ColumnInt64(column) != 0
	return &value
}

func columnTime(stmt *sqlite.Stmt, column int) time.Time {
	parsed, err := time.Parse(timeLayout, stmt.ColumnText(column))
	if err != nil {
		return time.Time{}
	}
	return parsed
}
