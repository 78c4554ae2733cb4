// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/campusvote/livetally/domainerr"
	"github.com/campusvote/livetally/ledger"
	"github.com/campusvote/livetally/models"
)

// Store implements ledger.Store and ledger.Catalog over database/sql.
// Queries use $N placeholders, accepted by both lib/pq and modernc sqlite.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertVoteIfAbsent appends a vote. The UNIQUE (election_id, voter_id)
// constraint is the only duplicate check.
func (s *Store) InsertVoteIfAbsent(ctx context.Context, vote models.Vote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote (id, election_id, voter_id, candidate_id, position_name, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, vote.ID, vote.ElectionID, vote.VoterID, vote.CandidateID, vote.Position, vote.CastAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: election %s", domainerr.ErrDuplicateVote, vote.ElectionID)
		}
		slog.Error("failed to insert vote", "error", err, "election_id", vote.ElectionID)
		return classify(err)
	}

	return nil
}

func (s *Store) GetVoterVote(ctx context.Context, electionID, voterID string) (models.Vote, bool, error) {
	var v models.Vote
	err := s.db.QueryRowContext(ctx, `
		SELECT id, election_id, voter_id, candidate_id, position_name, cast_at
		FROM vote
		WHERE election_id = $1 AND voter_id = $2
	`, electionID, voterID).Scan(&v.ID, &v.ElectionID, &v.VoterID, &v.CandidateID, &v.Position, &v.CastAt)

	if err == sql.ErrNoRows {
		return models.Vote{}, false, nil
	}
	if err != nil {
		return models.Vote{}, false, classify(err)
	}
	v.CastAt = v.CastAt.UTC()
	return v, true, nil
}

// ListVotes returns all votes of an election in insertion order.
func (s *Store) ListVotes(ctx context.Context, electionID string) ([]models.Vote, error) {
	return s.queryVotes(ctx, `
		SELECT id, election_id, voter_id, candidate_id, position_name, cast_at
		FROM vote
		WHERE election_id = $1
		ORDER BY cast_at, id
	`, electionID)
}

func (s *Store) ListVoterVotes(ctx context.Context, voterID string) ([]models.Vote, error) {
	return s.queryVotes(ctx, `
		SELECT id, election_id, voter_id, candidate_id, position_name, cast_at
		FROM vote
		WHERE voter_id = $1
		ORDER BY cast_at DESC, id
	`, voterID)
}

func (s *Store) queryVotes(ctx context.Context, query string, arg string) ([]models.Vote, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.ElectionID, &v.VoterID, &v.CandidateID, &v.Position, &v.CastAt); err != nil {
			return nil, classify(err)
		}
		v.CastAt = v.CastAt.UTC()
		votes = append(votes, v)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return votes, nil
}

// Catalog lookups

func (s *Store) GetElection(ctx context.Context, id string) (models.Election, bool, error) {
	var e models.Election
	var start, end sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, status, total_eligible_voters, start_date, end_date
		FROM election
		WHERE id = $1
	`, id).Scan(&e.ID, &e.Title, &e.Status, &e.TotalEligibleVoters, &start, &end)

	if err == sql.ErrNoRows {
		return models.Election{}, false, nil
	}
	if err != nil {
		return models.Election{}, false, classify(err)
	}
	if start.Valid {
		t := start.Time.UTC()
		e.StartDate = &t
	}
	if end.Valid {
		t := end.Time.UTC()
		e.EndDate = &t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM election_position
		WHERE election_id = $1
		ORDER BY ordinal, name
	`, id)
	if err != nil {
		return models.Election{}, false, classify(err)
	}
	defer rows.Close()

	e.Positions = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return models.Election{}, false, classify(err)
		}
		e.Positions = append(e.Positions, name)
	}
	if err := rows.Err(); err != nil {
		return models.Election{}, false, classify(err)
	}

	return e, true, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (models.Candidate, bool, error) {
	var c models.Candidate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, election_id, position_name, name
		FROM candidate
		WHERE id = $1
	`, id).Scan(&c.ID, &c.ElectionID, &c.Position, &c.Name)

	if err == sql.ErrNoRows {
		return models.Candidate{}, false, nil
	}
	if err != nil {
		return models.Candidate{}, false, classify(err)
	}
	return c, true, nil
}

// ListCandidates returns the candidates of an election ordered by id.
func (s *Store) ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, election_id, position_name, name
		FROM candidate
		WHERE election_id = $1
		ORDER BY id
	`, electionID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.Position, &c.Name); err != nil {
			return nil, classify(err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return candidates, nil
}

// IsEligible reports whether voterID may vote. Elections without a roster
// are open to every voter.
func (s *Store) IsEligible(ctx context.Context, electionID, voterID string) (bool, error) {
	var rosterSize, listed int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN voter_id = $2 THEN 1 ELSE 0 END), 0)
		FROM election_voter
		WHERE election_id = $1
	`, electionID, voterID).Scan(&rosterSize, &listed)

	if err != nil {
		return false, classify(err)
	}
	return rosterSize == 0 || listed > 0, nil
}

// isUniqueViolation recognizes unique constraint errors from both drivers
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}

// classify marks transient infrastructure failures as retryable and leaves
// context errors untouched so callers can detect timeouts.
func classify(err error) error {
	if err == nil || domainerr.IsTimeout(err) {
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", domainerr.ErrStorageUnavailable, err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57": // connection exception, insufficient resources, operator intervention
			return true
		}
		return pqErr.Code == "40001" || pqErr.Code == "40P01" // serialization failure, deadlock
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}

	return false
}

// Ping reports whether the database is reachable within timeout.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return classify(s.db.PingContext(ctx))
}

var _ ledger.Store = (*Store)(nil)
var _ ledger.Catalog = (*Store)(nil)
