// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported SQL database types
const (
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Open connects to a SQL database of the given type and verifies the connection.
// The handle is acquired once at startup and closed by the caller at shutdown.
func Open(dbType, url string) (*sql.DB, error) {
	var conn *sql.DB
	var err error

	switch dbType {
	case TypePostgres:
		conn, err = sql.Open("postgres", url)
	case TypeSQLite:
		conn, err = sql.Open("sqlite", sqliteDSN(url))
		if err == nil {
			// SQLite allows one writer; a single connection avoids SQLITE_BUSY
			conn.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dbType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dbType, err)
	}

	return conn, nil
}

func sqliteDSN(url string) string {
	if strings.Contains(url, "_pragma=") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// schema runs in order, one statement per entry
var schema = []string{
	// Elections (reference data, written by the election management app)
	`CREATE TABLE IF NOT EXISTS election (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'upcoming' CHECK (status IN ('upcoming', 'active', 'paused', 'completed', 'cancelled')),
		total_eligible_voters INTEGER NOT NULL DEFAULT 0,
		start_date TIMESTAMP,
		end_date TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_election_status ON election(status)`,

	// Positions contested in an election
	`CREATE TABLE IF NOT EXISTS election_position (
		election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		ordinal INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (election_id, name)
	)`,

	// Optional voter roster. An election without rows is open to every voter.
	`CREATE TABLE IF NOT EXISTS election_voter (
		election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
		voter_id TEXT NOT NULL,
		PRIMARY KEY (election_id, voter_id)
	)`,

	// Candidates
	`CREATE TABLE IF NOT EXISTS candidate (
		id TEXT PRIMARY KEY,
		election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
		position_name TEXT NOT NULL,
		name TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_candidate_election_id ON candidate(election_id)`,

	// Votes (append-only)
	`CREATE TABLE IF NOT EXISTS vote (
		id TEXT PRIMARY KEY,
		election_id TEXT NOT NULL REFERENCES election(id),
		voter_id TEXT NOT NULL,
		candidate_id TEXT NOT NULL REFERENCES candidate(id),
		position_name TEXT NOT NULL,
		cast_at TIMESTAMP NOT NULL,
		UNIQUE (election_id, voter_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vote_election_id ON vote(election_id)`,
	`CREATE INDEX IF NOT EXISTS idx_vote_voter_id ON vote(voter_id)`,
}
