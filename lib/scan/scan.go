// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scan collects player records from every world on a server.
//
// A Scanner lists the worlds with one session, then hands world ids to
// a fixed pool of workers. Each worker opens its own session, so the
// scan's concurrency is also its number of simultaneous logins. For
// every world whose protagonist has a username the worker reads the
// position and the data collection; results are deduplicated by
// username, world id, and flag. A world that fails is recorded as a
// WorldFailure and the scan moves on. Nothing is retried.
//
// Run only reads from the server. Result.Persist writes what was found
// to a Sink such as *recordstore.Store.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/wayfinder/lib/recordstore"
	"github.com/bureau-foundation/wayfinder/lib/world"
)

// DefaultWorkers is the worker count when Config.Workers is not
// positive.
const DefaultWorkers = 4

// Session is an authenticated connection to the server.
// *kerberos.Client implements it.
type Session interface {
	world.Invoker
	Close() error
}

// Dialer opens a new Session.
type Dialer func(ctx context.Context) (Session, error)

// Config holds configuration for creating a Scanner.
type Config struct {
	Dial Dialer

	// Workers is the number of concurrent sessions scanning worlds.
	Workers int

	// StripEmail drops email addresses from collected profiles.
	StripEmail bool

	// Progress, if set, is called after each world is processed with
	// the number processed so far and the total. Calls come from
	// worker goroutines.
	Progress func(done, total int)

	// Logger is used for structured logging. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Scanner runs scans. A Scanner holds no per-run state.
type Scanner struct {
	dial       Dialer
	workers    int
	stripEmail bool
	progress   func(done, total int)
	logger     *slog.Logger
}

// New returns a Scanner.
func New(config Config) (*Scanner, error) {
	if config.Dial == nil {
		return nil, fmt.Errorf("scan: Dial is required")
	}
	workers := config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		dial:       config.Dial,
		workers:    workers,
		stripEmail: config.StripEmail,
		progress:   config.Progress,
		logger:     logger,
	}, nil
}

// WorldFailure records a world the scan could not read.
type WorldFailure struct {
	WorldID string

	// Stage names the query that failed: username, location, room
	// name, or data collection.
	Stage string

	Err error
}

func (f *WorldFailure) Error() string {
	return fmt.Sprintf("scan: world %s: %s: %v", f.WorldID, f.Stage, f.Err)
}

func (f *WorldFailure) Unwrap() error { return f.Err }

// Result is what a scan found. Slices are sorted by their key.
type Result struct {
	// Listed is the number of worlds the server listed.
	Listed int

	// Unclaimed is the number of worlds without a username.
	Unclaimed int

	Users    []recordstore.User
	Worlds   []recordstore.Position
	Flags    []recordstore.Flag
	Failures []*WorldFailure
}

// Run scans every world. It fails only when the world list cannot be
// read, no worker can open a session, or ctx is done. A worker that
// cannot open its session is logged and leaves the remaining worlds to
// the others; per-world errors are reported in Result.Failures.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	listing, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: opening session: %w", err)
	}
	ids, err := world.New(listing).ListWorlds(ctx)
	listing.Close()
	if err != nil {
		return nil, fmt.Errorf("scan: listing worlds: %w", err)
	}
	s.logger.Info("scan started", "worlds", len(ids), "workers", s.workers)

	collected := &accumulator{
		users:  make(map[string]recordstore.User),
		worlds: make(map[string]recordstore.Position),
		flags:  make(map[string]recordstore.Flag),
		total:  len(ids),
	}

	group, groupContext := errgroup.WithContext(ctx)
	jobs := make(chan string)
	group.Go(func() error {
		defer close(jobs)
		for _, id := range ids {
			select {
			case jobs <- id:
			case <-groupContext.Done():
				return groupContext.Err()
			}
		}
		return nil
	})
	pool := &workerPool{size: min(s.workers, max(len(ids), 1))}
	for index := range pool.size {
		group.Go(func() error {
			return s.work(groupContext, index, pool, jobs, collected)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := collected.result(len(ids))
	s.logger.Info("scan finished",
		"worlds", result.Listed,
		"users", len(result.Users),
		"flags", len(result.Flags),
		"unclaimed", result.Unclaimed,
		"failures", len(result.Failures),
	)
	return result, nil
}

// workerPool counts workers that could not open a session. Once every
// worker has failed nobody reads the job channel, so the last failure
// ends the run.
type workerPool struct {
	size       int
	dialFailed atomic.Int32
}

func (s *Scanner) work(ctx context.Context, index int, pool *workerPool, jobs <-chan string, collected *accumulator) error {
	session, err := s.dial(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if int(pool.dialFailed.Add(1)) == pool.size {
			return fmt.Errorf("scan: no worker could open a session: %w", err)
		}
		s.logger.Warn("scan worker could not open a session", "worker", index, "error", err)
		return nil
	}
	defer session.Close()
	client := world.New(session)

	for id := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if failure := s.scanWorld(ctx, client, id, collected); failure != nil {
			// A failure caused by cancellation is not the world's fault.
			if err := ctx.Err(); err != nil {
				return err
			}
			s.logger.Warn("world scan failed",
				"world_id", id,
				"stage", failure.Stage,
				"error", failure.Err,
			)
			collected.fail(failure)
		}
		if done := collected.finish(); s.progress != nil {
			s.progress(done, collected.total)
		}
	}
	return nil
}

func (s *Scanner) scanWorld(ctx context.Context, client *world.Client, id string, collected *accumulator) *WorldFailure {
	username, err := client.Username(ctx, id)
	if err != nil {
		return &WorldFailure{WorldID: id, Stage: "username", Err: err}
	}
	if username == "" {
		s.logger.Debug("world has no username", "world_id", id)
		collected.unclaimed()
		return nil
	}

	location, err := client.Location(ctx, id)
	if err != nil {
		return &WorldFailure{WorldID: id, Stage: "location", Err: err}
	}
	roomName, err := client.RoomName(ctx, id, location)
	if err != nil {
		return &WorldFailure{WorldID: id, Stage: "room name", Err: err}
	}
	profile, err := client.DataCollection(ctx, id)
	if err != nil {
		return &WorldFailure{WorldID: id, Stage: "data collection", Err: err}
	}

	position := recordstore.Position{WorldID: id, Username: username, Location: location, Room: roomName}
	if profile == nil {
		collected.add(position, nil, nil)
		return nil
	}

	user := recordstore.User{
		Username:  username,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Email:     profile.Email,
		Profile:   profile.HasProfile,
		Filiere:   profile.Filiere,
		Blocked:   profile.Blocked,
	}
	if s.stripEmail {
		user.Email = ""
	}
	flags := make([]recordstore.Flag, 0, len(profile.Flags))
	for _, flag := range profile.Flags {
		owner := flag.Username
		if owner == "" {
			owner = username
		}
		flags = append(flags, recordstore.Flag{Flag: flag.Name, Username: owner, Date: flag.Date})
	}
	collected.add(position, &user, flags)
	return nil
}

// accumulator merges worker results. The first sighting of a user,
// world, or flag wins.
type accumulator struct {
	mu        sync.Mutex
	users     map[string]recordstore.User
	worlds    map[string]recordstore.Position
	flags     map[string]recordstore.Flag
	failures  []*WorldFailure
	skipped   int
	processed int
	total     int
}

func (a *accumulator) add(position recordstore.Position, user *recordstore.User, flags []recordstore.Flag) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.worlds[position.WorldID]; !ok {
		a.worlds[position.WorldID] = position
	}
	if user != nil {
		if _, ok := a.users[user.Username]; !ok {
			a.users[user.Username] = *user
		}
	}
	for _, flag := range flags {
		if _, ok := a.flags[flag.Flag]; !ok {
			a.flags[flag.Flag] = flag
		}
	}
}

func (a *accumulator) unclaimed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skipped++
}

func (a *accumulator) fail(failure *WorldFailure) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, failure)
}

func (a *accumulator) finish() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processed++
	return a.processed
}

func (a *accumulator) result(listed int) *Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := &Result{Listed: listed, Unclaimed: a.skipped, Failures: a.failures}
	for _, user := range a.users {
		result.Users = append(result.Users, user)
	}
	for _, position := range a.worlds {
		result.Worlds = append(result.Worlds, position)
	}
	for _, flag := range a.flags {
		result.Flags = append(result.Flags, flag)
	}
	sort.Slice(result.Users, func(i, j int) bool { return result.Users[i].Username < result.Users[j].Username })
	sort.Slice(result.Worlds, func(i, j int) bool { return result.Worlds[i].WorldID < result.Worlds[j].WorldID })
	sort.Slice(result.Flags, func(i, j int) bool { return result.Flags[i].Flag < result.Flags[j].Flag })
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].WorldID < result.Failures[j].WorldID })
	return result
}
