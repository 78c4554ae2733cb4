// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package service orchestrates a vote from request to broadcast.

# Submission

	received -> validating -> writing -> tallying -> broadcasting -> acknowledged
	                 \            \
	                  rejected     rejected

Submit validates the request shape and the caller's role, writes through the
ledger, folds the vote into the tally engine and hands the new tally to the
dispatcher. Events are only emitted once the write has returned, so nothing
is broadcast for a vote that is not durable.

# Failures

  - Business rules (ElectionNotActive, CandidateMismatch, NotEligible,
    DuplicateVote, ValidationError) are returned as-is and never retried.
  - StorageUnavailable is retried up to WriteRetries times with exponential
    backoff. Every attempt reuses the same vote id, so an attempt whose
    acknowledgement was lost is recognized instead of reported as a duplicate.
  - A write that hits WriteTimeout returns OutcomeUnknown. Callers should ask
    VoteStatus rather than resubmit.
  - Tally or broadcast problems after the write are logged; the vote is
    still acknowledged.

# Reads

VoteStatus, History and LiveTally serve the voter-facing queries. Results
recomputes an election from the ledger for admins and adds leaders, a
digest of the counted votes and channel sizes.
*/
package service
