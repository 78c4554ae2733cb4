// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger records cast votes.

# Casting

CastVote runs its checks in a fixed order, each with its own error:

	1. election exists and is active   → domainerr.ErrElectionNotActive
	2. candidate belongs to election
	   and runs for the given position → domainerr.ErrCandidateMismatch
	3. voter passes the eligibility flag → domainerr.ErrNotEligible
	4. no earlier vote by this voter   → domainerr.ErrDuplicateVote

Step 4 is not a lookup. The vote is inserted and the store's uniqueness
constraint on (election, voter) decides; concurrent casts from the same voter
produce exactly one success.

# Storage

Store and Catalog are implemented by sqlstore (PostgreSQL, SQLite) and
mongostore (MongoDB). Votes are never updated or deleted.
*/
package ledger
