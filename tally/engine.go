// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/campusvote/livetally/domainerr"
	"github.com/campusvote/livetally/models"
)

// Catalog is the reference data the engine reads.
type Catalog interface {
	GetElection(ctx context.Context, id string) (models.Election, bool, error)
	GetCandidate(ctx context.Context, id string) (models.Candidate, bool, error)
	ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error)
}

// VoteLister reads the ledger.
type VoteLister interface {
	ListVotes(ctx context.Context, electionID string) ([]models.Vote, error)
}

// Engine keeps one tally per election in memory. All mutation of an
// election's tally happens under that election's lock.
type Engine struct {
	catalog Catalog
	votes   VoteLister
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	elections map[string]*electionState
	loads     singleflight.Group
}

type electionState struct {
	mu      sync.Mutex
	tally   *models.Tally
	counted map[string]struct{} // vote ids already folded into tally
	gen     uint64              // bumped whenever tally is replaced or dropped
}

func NewEngine(catalog Catalog, votes VoteLister, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog:   catalog,
		votes:     votes,
		logger:    logger,
		now:       time.Now,
		elections: make(map[string]*electionState),
	}
}

func (e *Engine) state(electionID string) *electionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.elections[electionID]
	if !ok {
		st = &electionState{}
		e.elections[electionID] = st
	}
	return st
}

// Recompute rebuilds the tally of an election from the ledger and replaces
// the cached copy.
func (e *Engine) Recompute(ctx context.Context, electionID string) (models.Tally, error) {
	st := e.state(electionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	return e.recomputeLocked(ctx, st, electionID)
}

func (e *Engine) recomputeLocked(ctx context.Context, st *electionState, electionID string) (models.Tally, error) {
	t, counted, err := e.load(ctx, electionID)
	if err != nil {
		return models.Tally{}, err
	}
	e.install(st, t, counted)
	return Clone(t), nil
}

// load computes a tally straight from the ledger without touching the cache.
func (e *Engine) load(ctx context.Context, electionID string) (models.Tally, map[string]struct{}, error) {
	election, found, err := e.catalog.GetElection(ctx, electionID)
	if err != nil {
		return models.Tally{}, nil, fmt.Errorf("failed to load election: %w", err)
	}
	if !found {
		return models.Tally{}, nil, fmt.Errorf("%w: %s", domainerr.ErrElectionNotFound, electionID)
	}

	candidates, err := e.catalog.ListCandidates(ctx, electionID)
	if err != nil {
		return models.Tally{}, nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	votes, err := e.votes.ListVotes(ctx, electionID)
	if err != nil {
		return models.Tally{}, nil, fmt.Errorf("failed to load votes: %w", err)
	}

	t := Compute(election, candidates, votes)
	t.LastUpdated = e.now().UTC()

	counted := make(map[string]struct{}, len(votes))
	for _, v := range votes {
		counted[v.ID] = struct{}{}
	}

	e.logger.Debug("tally recomputed", "election_id", electionID, "total_votes", t.TotalVotes)
	return t, counted, nil
}

// install replaces the cached tally. Caller holds st.mu.
func (e *Engine) install(st *electionState, t models.Tally, counted map[string]struct{}) {
	st.tally = &t
	st.counted = counted
	st.gen++
}

// Snapshot returns the current tally, loading it from the ledger on first
// use. Concurrent first loads of one election share a single load, which
// runs without holding the election's lock.
func (e *Engine) Snapshot(ctx context.Context, electionID string) (models.Tally, error) {
	st := e.state(electionID)
	st.mu.Lock()
	if st.tally != nil {
		t := Clone(*st.tally)
		st.mu.Unlock()
		return t, nil
	}
	st.mu.Unlock()

	v, err, _ := e.loads.Do(electionID, func() (interface{}, error) {
		return e.coldLoad(context.WithoutCancel(ctx), st, electionID)
	})
	if err != nil {
		return models.Tally{}, err
	}
	return Clone(v.(models.Tally)), nil
}

// coldLoad loads outside the lock and installs the result only if nothing
// replaced or dropped the cache in the meantime. Otherwise the newer cached
// tally wins; a vote written after the load is counted by its own Update.
func (e *Engine) coldLoad(ctx context.Context, st *electionState, electionID string) (models.Tally, error) {
	st.mu.Lock()
	if st.tally != nil {
		t := Clone(*st.tally)
		st.mu.Unlock()
		return t, nil
	}
	gen := st.gen
	st.mu.Unlock()

	t, counted, err := e.load(ctx, electionID)
	if err != nil {
		return models.Tally{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gen == gen && st.tally == nil {
		e.install(st, t, counted)
		return Clone(t), nil
	}
	if st.tally != nil {
		return Clone(*st.tally), nil
	}
	return e.recomputeLocked(ctx, st, electionID)
}

// Update folds an accepted, durable vote into its election's tally. emit is
// called with the new tally while the election's lock is still held, so
// emits for one election run in tally order; emit must not block.
// A vote already counted by an earlier recompute is not counted again.
func (e *Engine) Update(ctx context.Context, vote models.Vote, emit func(models.Vote, models.Tally)) (models.Tally, error) {
	st := e.state(vote.ElectionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.tally == nil {
		if _, err := e.recomputeLocked(ctx, st, vote.ElectionID); err != nil {
			return models.Tally{}, err
		}
	} else if _, seen := st.counted[vote.ID]; !seen {
		if err := e.applyLocked(ctx, st, vote); err != nil {
			e.logger.Warn("incremental tally failed, recomputing",
				"error", err,
				"election_id", vote.ElectionID,
			)
			if _, err := e.recomputeLocked(ctx, st, vote.ElectionID); err != nil {
				return models.Tally{}, err
			}
		}
	}

	t := Clone(*st.tally)
	if emit != nil {
		emit(vote, Clone(t))
	}
	return t, nil
}

func (e *Engine) applyLocked(ctx context.Context, st *electionState, vote models.Vote) error {
	// Eligible count is reference data and may change between votes
	election, found, err := e.catalog.GetElection(ctx, vote.ElectionID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", domainerr.ErrElectionNotFound, vote.ElectionID)
	}

	candidate, found, err := e.catalog.GetCandidate(ctx, vote.CandidateID)
	if err != nil {
		return err
	}
	name := ""
	if found {
		name = candidate.Name
	}

	base := *st.tally
	base.TotalEligibleVoters = election.TotalEligibleVoters
	next := ApplyDelta(base, vote, name)
	next.LastUpdated = e.now().UTC()

	st.tally = &next
	st.counted[vote.ID] = struct{}{}
	st.gen++
	return nil
}

// Invalidate drops the cached tally so the next read recomputes it.
func (e *Engine) Invalidate(electionID string) {
	st := e.state(electionID)
	st.mu.Lock()
	st.tally = nil
	st.counted = nil
	st.gen++
	st.mu.Unlock()
}
