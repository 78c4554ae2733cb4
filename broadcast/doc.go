// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package broadcast decides which events an accepted vote produces and who
receives them.

# Events

For every accepted vote:

	vote_cast            -> general channel     {electionId, totalVotes, turnoutPercentage, timestamp}
	live_results_update  -> live results (admin) {electionId, totalVotes, turnoutPercentage, results, lastUpdated}
	turnout_milestone    -> general channel     {electionId, milestone, currentTurnout, timestamp}

turnout_milestone is only sent when a threshold fires.

# Milestones

Thresholds default to 25, 50, 75 and 100. In "reached" mode a threshold
fires when the new turnout equals it; a threshold that turnout jumps over is
never emitted. In "crossed" mode the highest threshold between the previous
and the new turnout fires. In both modes each election emits a threshold at
most once and emitted values strictly increase.

Milestone progress lives in memory and starts over when the process restarts.

# Ordering and Failures

The dispatcher expects tallies of one election in order (the tally engine
calls it under the election lock) and drops any tally older than one it has
already emitted. Sends are non-blocking; a connection that fails is logged
and skipped. Delivery problems never reach the voter who cast the vote.
*/
package broadcast
