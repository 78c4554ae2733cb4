// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally derives live vote counts from the ledger.

# Full and Incremental

Compute counts a whole election; ApplyDelta adds one vote to an existing
tally. Both produce the same counts, totalVotes and turnoutPercentage for
the same ledger contents, and both order a position's candidates by
candidate id.

	t := tally.Compute(election, candidates, votes)
	t = tally.ApplyDelta(t, vote, "Alice")

# Turnout

	turnout = round(100 * totalVotes / totalEligibleVoters), clamped to [0, 100]

Halves round away from zero (1 of 8 voters is 13%). Elections with no
eligible voters report 0.

# Engine

Engine caches one tally per election. Update, Recompute and Invalidate take
the election's lock, so one election has one writer at a time. Update skips
votes that an earlier recompute already counted.

# Winners

Leaders is a read-time projection: every candidate tied for the top count is
returned. Breaking ties is left to whoever presents the results.
*/
package tally
