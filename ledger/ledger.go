// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusvote/livetally/domainerr"
	"github.com/campusvote/livetally/models"
)

// Catalog is the read-only view of elections and candidates.
type Catalog interface {
	GetElection(ctx context.Context, id string) (models.Election, bool, error)
	GetCandidate(ctx context.Context, id string) (models.Candidate, bool, error)
	ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error)
	IsEligible(ctx context.Context, electionID, voterID string) (bool, error)
}

// Store persists votes. InsertVoteIfAbsent must rely on a uniqueness
// constraint on (election, voter) and return domainerr.ErrDuplicateVote
// when it fires.
type Store interface {
	InsertVoteIfAbsent(ctx context.Context, vote models.Vote) error
	GetVoterVote(ctx context.Context, electionID, voterID string) (models.Vote, bool, error)
	ListVotes(ctx context.Context, electionID string) ([]models.Vote, error)
	ListVoterVotes(ctx context.Context, voterID string) ([]models.Vote, error)
}

// CastRequest describes one vote. VoteID is optional; callers that retry a
// write pass the same VoteID on every attempt.
type CastRequest struct {
	VoteID      string
	ElectionID  string
	VoterID     string
	CandidateID string
	Position    string
}

type Ledger struct {
	catalog Catalog
	store   Store
	now     func() time.Time
}

func New(catalog Catalog, store Store) *Ledger {
	return &Ledger{catalog: catalog, store: store, now: time.Now}
}

// CastVote checks the election, the candidate, eligibility and then appends
// the vote. The duplicate check is the store's uniqueness constraint.
func (l *Ledger) CastVote(ctx context.Context, req CastRequest) (models.Vote, error) {
	if req.ElectionID == "" || req.VoterID == "" || req.CandidateID == "" || req.Position == "" {
		return models.Vote{}, domainerr.ErrValidation
	}

	election, found, err := l.catalog.GetElection(ctx, req.ElectionID)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to load election: %w", err)
	}
	if !found {
		return models.Vote{}, fmt.Errorf("%w: election %s does not exist", domainerr.ErrElectionNotActive, req.ElectionID)
	}
	if election.Status != models.StatusActive {
		return models.Vote{}, fmt.Errorf("%w: election is %s", domainerr.ErrElectionNotActive, election.Status)
	}

	candidate, found, err := l.catalog.GetCandidate(ctx, req.CandidateID)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to load candidate: %w", err)
	}
	if !found {
		return models.Vote{}, fmt.Errorf("%w: candidate %s does not exist", domainerr.ErrCandidateMismatch, req.CandidateID)
	}
	if candidate.ElectionID != election.ID {
		return models.Vote{}, fmt.Errorf("%w: candidate belongs to another election", domainerr.ErrCandidateMismatch)
	}
	if candidate.Position != req.Position {
		return models.Vote{}, fmt.Errorf("%w: candidate runs for %q, not %q", domainerr.ErrCandidateMismatch, candidate.Position, req.Position)
	}

	eligible, err := l.catalog.IsEligible(ctx, election.ID, req.VoterID)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to check eligibility: %w", err)
	}
	if !eligible {
		return models.Vote{}, domainerr.ErrNotEligible
	}

	voteID := req.VoteID
	if voteID == "" {
		voteID = uuid.NewString()
	}
	vote := models.Vote{
		ID:          voteID,
		ElectionID:  election.ID,
		VoterID:     req.VoterID,
		CandidateID: candidate.ID,
		Position:    candidate.Position,
		CastAt:      l.now().UTC(),
	}

	err = l.store.InsertVoteIfAbsent(ctx, vote)
	if errors.Is(err, domainerr.ErrDuplicateVote) && req.VoteID != "" {
		// A retried write whose first attempt committed finds its own vote.
		existing, found, lookupErr := l.store.GetVoterVote(ctx, election.ID, req.VoterID)
		if lookupErr == nil && found && existing.ID == req.VoteID {
			return existing, nil
		}
	}
	if err != nil {
		return models.Vote{}, err
	}

	return vote, nil
}

// VoterVote returns the vote a voter cast in an election, if any.
func (l *Ledger) VoterVote(ctx context.Context, electionID, voterID string) (models.Vote, bool, error) {
	return l.store.GetVoterVote(ctx, electionID, voterID)
}

// History returns every vote cast by voterID, newest first.
func (l *Ledger) History(ctx context.Context, voterID string) ([]models.Vote, error) {
	return l.store.ListVoterVotes(ctx, voterID)
}
