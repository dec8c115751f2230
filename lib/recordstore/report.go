// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Stats counts the store's contents.
type Stats struct {
	Users     int `json:"users"`
	Worlds    int `json:"worlds"`
	FlagBases int `json:"flags"`
}

// UserSummary is one row of the user listing.
type UserSummary struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Filiere   string `json:"filiere,omitempty"`
	Blocked   *bool  `json:"blocked,omitempty"`
	FlagCount int    `json:"flag_count"`
}

// UserDetail is everything known about one player.
type UserDetail struct {
	User User `json:"details"`

	// Profiled is false when the player has flags or worlds but no
	// users row. User then carries only the username.
	Profiled bool `json:"profiled"`

	Flags        []Flag    `json:"flags"`
	LastPosition *Position `json:"last_position"`
}

// Comparison lists the flag bases two players do not share.
type Comparison struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`

	// Ahead are bases only User1 has; Behind are bases only User2 has.
	Ahead  []string `json:"ahead"`
	Behind []string `json:"behind"`
	Common []string `json:"common"`
}

// FlagBase returns the part of flag before the first colon. Flags
// without a colon have no base.
func FlagBase(flag string) (string, bool) {
	base, _, found := strings.Cut(flag, ":")
	if !found {
		return "", false
	}
	return base, true
}

// Stats counts users, worlds, and distinct flag bases.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	bases := make(map[string]bool)
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		count := func(query string, target *int) error {
			return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					*target = stmt.ColumnInt(0)
					return nil
				},
			})
		}
		if err := count("SELECT COUNT(DISTINCT username) FROM users", &stats.Users); err != nil {
			return err
		}
		if err := count("SELECT COUNT(DISTINCT world_id) FROM worlds", &stats.Worlds); err != nil {
			return err
		}
		return sqlitex.Execute(conn, "SELECT DISTINCT flag FROM flags", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if base, ok := FlagBase(stmt.ColumnText(0)); ok {
					bases[base] = true
				}
				return nil
			},
		})
	})
	if err != nil {
		return Stats{}, fmt.Errorf("recordstore: stats: %w", err)
	}
	stats.FlagBases = len(bases)
	return stats, nil
}

// Users lists every profiled player with their flag count, ordered by
// username ignoring case.
func (s *Store) Users(ctx context.Context) ([]UserSummary, error) {
	users := []UserSummary{}
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT u.username, u.first_name, u.last_name, u.filiere, u.blocked, COALESCE(f.flag_count, 0)
			FROM users u
			LEFT JOIN (
				SELECT username, COUNT(flag) AS flag_count FROM flags GROUP BY username
			) f ON u.username = f.username
			ORDER BY u.username COLLATE NOCASE ASC`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					users = append(users, UserSummary{
						Username:  stmt.ColumnText(0),
						FirstName: stmt.ColumnText(1),
						LastName:  stmt.ColumnText(2),
						Filiere:   stmt.ColumnText(3),
						Blocked:   columnBool(stmt, 4),
						FlagCount: stmt.ColumnInt(5),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("recordstore: listing users: %w", err)
	}
	return users, nil
}

// UserFlags returns username's flags, most recent date first.
func (s *Store) UserFlags(ctx context.Context, username string) ([]Flag, error) {
	var flags []Flag
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		flags, err = userFlags(conn, username)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recordstore: flags of %s: %w", username, err)
	}
	return flags, nil
}

func userFlags(conn *sqlite.Conn, username string) ([]Flag, error) {
	flags := []Flag{}
	err := sqlitex.Execute(conn, `
		SELECT flag, date, created_at FROM flags
		WHERE username = ?
		ORDER BY date DESC, flag ASC`,
		&sqlitex.ExecOptions{
			Args: []any{username},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				flags = append(flags, Flag{
					Flag:      stmt.ColumnText(0),
					Username:  username,
					Date:      stmt.ColumnText(1),
					CreatedAt: columnTime(stmt, 2),
				})
				return nil
			},
		})
	return flags, err
}

// WhereIs returns the most recently created world of username, or nil
// when the player has none.
func (s *Store) WhereIs(ctx context.Context, username string) (*Position, error) {
	var position *Position
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		position, err = lastPosition(conn, username)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recordstore: position of %s: %w", username, err)
	}
	return position, nil
}

func lastPosition(conn *sqlite.Conn, username string) (*Position, error) {
	var position *Position
	err := sqlitex.Execute(conn, `
		SELECT world_id, location, room, created_at FROM worlds
		WHERE username = ?
		ORDER BY created_at DESC, world_id DESC
		LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{username},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				position = &Position{
					WorldID:   stmt.ColumnText(0),
					Username:  username,
					Location:  stmt.ColumnText(1),
					Room:      stmt.ColumnText(2),
					CreatedAt: columnTime(stmt, 3),
				}
				return nil
			},
		})
	return position, err
}

// UserDetail returns the profile, flags, and last position of
// username. A player seen only in flags or worlds is returned with
// Profiled false. A player seen nowhere yields ErrUserNotFound.
func (s *Store) UserDetail(ctx context.Context, username string) (*UserDetail, error) {
	var detail *UserDetail
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		detail = &UserDetail{User: User{Username: username}}
		err := sqlitex.Execute(conn, `
			SELECT first_name, last_name, email, profile, filiere, blocked, created_at
			FROM users WHERE username = ?`,
			&sqlitex.ExecOptions{
				Args: []any{username},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					detail.Profiled = true
					detail.User = User{
						Username:  username,
						FirstName: stmt.ColumnText(0),
						LastName:  stmt.ColumnText(1),
						Email:     stmt.ColumnText(2),
						Profile:   columnBool(stmt, 3),
						Filiere:   stmt.ColumnText(4),
						Blocked:   columnBool(stmt, 5),
						CreatedAt: columnTime(stmt, 6),
					}
					return nil
				},
			})
		if err != nil {
			return err
		}
		if detail.Flags, err = userFlags(conn, username); err != nil {
			return err
		}
		detail.LastPosition, err = lastPosition(conn, username)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recordstore: detail of %s: %w", username, err)
	}
	if !detail.Profiled && len(detail.Flags) == 0 && detail.LastPosition == nil {
		return nil, fmt.Errorf("recordstore: %s: %w", username, ErrUserNotFound)
	}
	return detail, nil
}

// CompareFlags compares the flag bases of two players.
func (s *Store) CompareFlags(ctx context.Context, user1, user2 string) (*Comparison, error) {
	if user1 == "" || user2 == "" {
		return nil, fmt.Errorf("recordstore: two usernames are required")
	}
	first, err := s.flagBases(ctx, user1)
	if err != nil {
		return nil, err
	}
	second, err := s.flagBases(ctx, user2)
	if err != nil {
		return nil, err
	}

	comparison := &Comparison{User1: user1, User2: user2, Ahead: []string{}, Behind: []string{}, Common: []string{}}
	for base := range first {
		if second[base] {
			comparison.Common = append(comparison.Common, base)
		} else {
			comparison.Ahead = append(comparison.Ahead, base)
		}
	}
	for base := range second {
		if !first[base] {
			comparison.Behind = append(comparison.Behind, base)
		}
	}
	slices.Sort(comparison.Ahead)
	slices.Sort(comparison.Behind)
	slices.Sort(comparison.Common)
	return comparison, nil
}

func (s *Store) flagBases(ctx context.Context, username string) (map[string]bool, error) {
	bases := make(map[string]bool)
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT flag FROM flags WHERE username = ?", &sqlitex.ExecOptions{
			Args: []any{username},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if base, ok := FlagBase(stmt.ColumnText(0)); ok {
					bases[base] = true
				}
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("recordstore: flags of %s: %w", username, err)
	}
	return bases, nil
}
