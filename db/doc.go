// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens SQL connections and creates the schema.

# Connections

Open accepts "postgres" (github.com/lib/pq) or "sqlite" (modernc.org/sqlite):

	conn, err := db.Open(db.TypePostgres, "postgres://...")

SQLite handles are limited to one open connection and get a busy timeout and
foreign keys enabled unless the DSN already sets pragmas.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The statements are valid for both PostgreSQL and SQLite.

# Tables

  - election: reference data, status and eligible voter count
  - election_position: positions contested in an election
  - election_voter: optional roster for the eligibility check
  - candidate: candidates per election and position
  - vote: append-only ledger

# Relationships

	election 1──* election_position
	election 1──* election_voter
	election 1──* candidate
	election 1──* vote
	candidate 1──* vote

# Indexes

  - vote.(election_id, voter_id) (unique; the one-vote-per-voter guarantee)
  - vote.election_id, vote.voter_id
  - candidate.election_id
  - election.status
*/
package db
