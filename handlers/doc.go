// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the live tally API.

# Handler Types

Each handler is a struct wrapping the submission service:

  - VotingHandler: vote casting, vote status and voting history
  - ResultsHandler: live tallies and admin result snapshots

Handlers are created via constructor functions:

	votingHandler := handlers.NewVotingHandler(svc)

Every route expects middleware.RequireAuth in front of it; handlers read the
caller from the request context.

# Voting Flow

	POST /api/voting/cast-vote            → CastVote (voters only)
	GET  /api/voting/status/{electionId}  → VoteStatus
	GET  /api/voting/history              → History

A 504 with reason OutcomeUnknown means the write may or may not have
landed. Clients call VoteStatus before trying again.

# Results

	GET /api/analytics/live/{electionId}  → LiveTally
	GET /api/voting/results/{electionId}  → Results (admin)

# Errors

Rejections carry a machine-readable reason next to the message:

	{"error": "Conflict", "message": "...", "reason": "DuplicateVote"}

	ValidationError     400
	CandidateMismatch   422
	NotEligible         403
	ElectionNotActive   409
	DuplicateVote       409
	ElectionNotFound    404
	StorageUnavailable  503
	OutcomeUnknown      504
*/
package handlers
