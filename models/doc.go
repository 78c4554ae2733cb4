// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, domain and event types.

# Reference Types

Read-only records owned by the election management app:

  - Election: status, positions, eligible voter count, schedule
  - Candidate: position and display name within one election

# Core Types

  - Vote: one immutable cast vote; at most one per (election, voter)
  - Tally: derived counts per position and candidate, plus turnout
  - CandidateCount: one candidate's entry inside a position

# Request and Response Types

  - CastVoteRequest: electionId, candidateId, position
  - CastVoteResponse: vote id and the caller's updated turnout view
  - VoteStatusResponse: whether the caller has voted in an election
  - VotingHistoryResponse: the caller's own votes
  - ResultsSnapshot: admin view with leaders and the ledger digest
  - ErrorResponse: error, message, reason

# Event Payloads

Pushed on the live channel:

	vote_cast            → VoteCastEvent (every member of the election room)
	live_results_update  → LiveResultsEvent (admin live-results subscribers)
	turnout_milestone    → TurnoutMilestoneEvent (every member of the election room)

# Constants

Election status values:

	StatusUpcoming  = "upcoming"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

Roles:

	RoleVoter = "voter"
	RoleAdmin = "admin"
*/
package models
