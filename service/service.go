// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campusvote/livetally/auth"
	"github.com/campusvote/livetally/broadcast"
	"github.com/campusvote/livetally/domainerr"
	"github.com/campusvote/livetally/ledger"
	"github.com/campusvote/livetally/live"
	"github.com/campusvote/livetally/models"
	"github.com/campusvote/livetally/tally"
)

// Stage is a step of one vote submission.
type Stage string

const (
	StageReceived     Stage = "received"
	StageValidating   Stage = "validating"
	StageWriting      Stage = "writing"
	StageTallying     Stage = "tallying"
	StageBroadcasting Stage = "broadcasting"
	StageAcknowledged Stage = "acknowledged"
	StageRejected     Stage = "rejected"
)

type Config struct {
	WriteRetries int
	WriteTimeout time.Duration
	RetryBackoff time.Duration // first backoff, doubled per retry
}

// DefaultConfig matches the CLI defaults.
func DefaultConfig() Config {
	return Config{
		WriteRetries: 3,
		WriteTimeout: 5 * time.Second,
		RetryBackoff: 50 * time.Millisecond,
	}
}

type Deps struct {
	Catalog    ledger.Catalog
	Store      ledger.Store
	Engine     *tally.Engine
	Dispatcher *broadcast.Dispatcher
	Registry   *live.Registry
	Logger     *slog.Logger
}

// Service sequences a vote through the ledger, the tally engine and the
// dispatcher, and answers the read-side queries.
type Service struct {
	catalog    ledger.Catalog
	store      ledger.Store
	ledger     *ledger.Ledger
	engine     *tally.Engine
	dispatcher *broadcast.Dispatcher
	registry   *live.Registry
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// Ack is returned for an accepted vote. Tally is the caller's view of the
// election right after the vote and is only set when Tallied is true.
type Ack struct {
	Vote    models.Vote
	Tally   models.Tally
	Tallied bool
}

func New(deps Deps, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}

	return &Service{
		catalog:    deps.Catalog,
		store:      deps.Store,
		ledger:     ledger.New(deps.Catalog, deps.Store),
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Submit casts a vote for the authenticated voter. The vote is durable
// before any event is emitted; a failure after the write never turns into
// a rejection.
func (s *Service) Submit(ctx context.Context, p auth.Principal, req models.CastVoteRequest) (Ack, error) {
	voteID := uuid.NewString()
	log := s.logger.With("vote_id", voteID, "election_id", req.ElectionID)
	log.Debug("vote submission", "stage", StageReceived)

	log.Debug("vote submission", "stage", StageValidating)
	if err := validate(p, req); err != nil {
		log.Info("vote rejected", "stage", StageRejected, "reason", domainerr.Reason(err))
		return Ack{}, err
	}

	log.Debug("vote submission", "stage", StageWriting)
	vote, err := s.write(ctx, ledger.CastRequest{
		VoteID:      voteID,
		ElectionID:  req.ElectionID,
		VoterID:     p.ID,
		CandidateID: req.CandidateID,
		Position:    req.Position,
	})
	if err != nil {
		log.Info("vote rejected", "stage", StageRejected, "reason", domainerr.Reason(err), "error", err)
		return Ack{}, err
	}

	// The vote is durable; the caller leaving must not stop the tally
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	log.Debug("vote submission", "stage", StageTallying)
	emit := func(v models.Vote, t models.Tally) {
		if s.dispatcher == nil {
			return
		}
		log.Debug("vote submission", "stage", StageBroadcasting)
		s.dispatcher.OnVoteAccepted(v, t)
	}
	t, err := s.engine.Update(tctx, vote, emit)
	if err != nil {
		log.Error("failed to update tally", "error", err)
		s.engine.Invalidate(vote.ElectionID)

		// A fresh load from the ledger already includes this vote
		t, err = s.engine.Snapshot(tctx, vote.ElectionID)
		if err != nil {
			log.Error("failed to reload tally", "error", err)
			log.Info("vote accepted", "stage", StageAcknowledged)
			return Ack{Vote: vote}, nil
		}
	}

	log.Info("vote accepted", "stage", StageAcknowledged, "total_votes", t.TotalVotes)
	return Ack{Vote: vote, Tally: t, Tallied: true}, nil
}

func validate(p auth.Principal, req models.CastVoteRequest) error {
	if req.ElectionID == "" || req.CandidateID == "" || req.Position == "" {
		return fmt.Errorf("%w: electionId, candidateId and position are required", domainerr.ErrValidation)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: missing voter", domainerr.ErrValidation)
	}
	if p.Role != models.RoleVoter {
		return fmt.Errorf("%w: only voters can cast votes", domainerr.ErrValidation)
	}
	return nil
}

// write runs the ledger write with a timeout and retries transient storage
// failures with exponential backoff. Every attempt carries the same vote id.
func (s *Service) write(ctx context.Context, req ledger.CastRequest) (models.Vote, error) {
	backoff := s.cfg.RetryBackoff

	for attempt := 0; ; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		vote, err := s.ledger.CastVote(wctx, req)
		cancel()

		switch {
		case err == nil:
			return vote, nil
		case domainerr.IsTimeout(err):
			// The insert may or may not have committed
			return models.Vote{}, fmt.Errorf("%w: %w", domainerr.ErrOutcomeUnknown, err)
		case !domainerr.Retryable(err) || attempt >= s.cfg.WriteRetries:
			return models.Vote{}, err
		}

		s.logger.Warn("retrying vote write",
			"error", err,
			"attempt", attempt+1,
			"vote_id", req.VoteID,
			"backoff_ms", backoff.Milliseconds(),
		)
		if err := s.sleep(ctx, backoff); err != nil {
			return models.Vote{}, fmt.Errorf("%w: %w", domainerr.ErrOutcomeUnknown, err)
		}
		backoff *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// VoteStatus reports whether the caller has voted in an election. Clients
// use it to resolve an unknown outcome instead of resubmitting.
func (s *Service) VoteStatus(ctx context.Context, p auth.Principal, electionID string) (models.VoteStatusResponse, error) {
	if electionID == "" {
		return models.VoteStatusResponse{}, domainerr.ErrValidation
	}

	vote, found, err := s.ledger.VoterVote(ctx, electionID, p.ID)
	if err != nil {
		return models.VoteStatusResponse{}, err
	}

	resp := models.VoteStatusResponse{ElectionID: electionID, HasVoted: found}
	if found {
		resp.VoteID = vote.ID
		castAt := vote.CastAt
		resp.CastAt = &castAt
	}
	return resp, nil
}

// History lists the caller's votes, newest first.
func (s *Service) History(ctx context.Context, p auth.Principal) ([]models.Vote, error) {
	return s.ledger.History(ctx, p.ID)
}

// LiveTally returns the cached tally of an election.
func (s *Service) LiveTally(ctx context.Context, electionID string) (models.Tally, error) {
	if electionID == "" {
		return models.Tally{}, domainerr.ErrValidation
	}
	return s.engine.Snapshot(ctx, electionID)
}

// Results builds an admin snapshot straight from the ledger, independent of
// the engine cache, with leaders, a digest of the counted votes and the
// current channel sizes.
func (s *Service) Results(ctx context.Context, electionID string) (models.ResultsSnapshot, error) {
	if electionID == "" {
		return models.ResultsSnapshot{}, domainerr.ErrValidation
	}

	election, found, err := s.catalog.GetElection(ctx, electionID)
	if err != nil {
		return models.ResultsSnapshot{}, err
	}
	if !found {
		return models.ResultsSnapshot{}, fmt.Errorf("%w: %s", domainerr.ErrElectionNotFound, electionID)
	}

	candidates, err := s.catalog.ListCandidates(ctx, electionID)
	if err != nil {
		return models.ResultsSnapshot{}, err
	}
	votes, err := s.store.ListVotes(ctx, electionID)
	if err != nil {
		return models.ResultsSnapshot{}, err
	}

	computedAt := s.now().UTC()
	t := tally.Compute(election, candidates, votes)
	t.LastUpdated = computedAt

	snap := models.ResultsSnapshot{
		Tally:      t,
		Leaders:    tally.Leaders(t),
		InputsHash: tally.Digest(votes),
		ComputedAt: computedAt,
	}
	if s.registry != nil {
		snap.Watchers, snap.LiveSubscribers = s.registry.Counts(electionID)
	}
	return snap, nil
}

// IsRejection reports whether err is a final answer for the caller rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	return domainerr.IsBusinessRule(err) || errors.Is(err, domainerr.ErrElectionNotFound)
}
