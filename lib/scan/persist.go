// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/wayfinder/lib/recordstore"
)

// Sink stores scan results. *recordstore.Store implements it.
type Sink interface {
	SaveUser(ctx context.Context, user recordstore.User) (recordstore.Change, error)
	SaveWorld(ctx context.Context, position recordstore.Position) (recordstore.Change, error)
	SaveFlag(ctx context.Context, flag recordstore.Flag) (recordstore.Change, error)
}

// PersistSummary counts what Persist changed.
type PersistSummary struct {
	UsersAdded    int `json:"users_added"`
	WorldsAdded   int `json:"worlds_added"`
	WorldsUpdated int `json:"worlds_updated"`
	FlagsAdded    int `json:"flags_added"`
}

// Persist writes users, then worlds, then flags to sink. It stops at
// the first error; rows written before it stay written, and rerunning
// Persist is safe.
func (r *Result) Persist(ctx context.Context, sink Sink) (PersistSummary, error) {
	var summary PersistSummary
	for _, user := range r.Users {
		change, err := sink.SaveUser(ctx, user)
		if err != nil {
			return summary, fmt.Errorf("scan: persisting: %w", err)
		}
		if change == recordstore.Inserted {
			summary.UsersAdded++
		}
	}
	for _, position := range r.Worlds {
		change, err := sink.SaveWorld(ctx, position)
		if err != nil {
			return summary, fmt.Errorf("scan: persisting: %w", err)
		}
		switch change {
		case recordstore.Inserted:
			summary.WorldsAdded++
		case recordstore.Updated:
			summary.WorldsUpdated++
		}
	}
	for _, flag := range r.Flags {
		change, err := sink.SaveFlag(ctx, flag)
		if err != nil {
			return summary, fmt.Errorf("scan: persisting: %w", err)
		}
		if change == recordstore.Inserted {
			summary.FlagsAdded++
		}
	}
	return summary, nil
}
