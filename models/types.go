// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Election status constants
const (
	StatusUpcoming  = "upcoming"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Principal role constants
const (
	RoleVoter = "voter"
	RoleAdmin = "admin"
)

// Event names on the live channel
const (
	EventVoteCast          = "vote_cast"
	EventLiveResultsUpdate = "live_results_update"
	EventTurnoutMilestone  = "turnout_milestone"
	EventError             = "error"
)

// Reference data (owned by the election management app)

type Election struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Status              string     `json:"status"`
	Positions           []string   `json:"positions"`
	TotalEligibleVoters int        `json:"totalEligibleVoters"`
	StartDate           *time.Time `json:"startDate,omitempty"`
	EndDate             *time.Time `json:"endDate,omitempty"`
}

type Candidate struct {
	ID         string `json:"id"`
	ElectionID string `json:"electionId"`
	Position   string `json:"position"`
	Name       string `json:"name"`
}

// Vote is immutable once written.
type Vote struct {
	ID          string    `json:"id"`
	ElectionID  string    `json:"electionId"`
	VoterID     string    `json:"-"` // Never expose in JSON
	CandidateID string    `json:"candidateId"`
	Position    string    `json:"position"`
	CastAt      time.Time `json:"castAt"`
}

// Tally types

type CandidateCount struct {
	CandidateID string `json:"candidateId"`
	Name        string `json:"name"`
	Votes       int    `json:"votes"`
}

type Tally struct {
	ElectionID          string                      `json:"electionId"`
	TotalVotes          int                         `json:"totalVotes"`
	TotalEligibleVoters int                         `json:"totalEligibleVoters"`
	TurnoutPercentage   int                         `json:"turnoutPercentage"`
	Results             map[string][]CandidateCount `json:"results"`
	LastUpdated         time.Time                   `json:"lastUpdated"`
}

// Request types

type CastVoteRequest struct {
	ElectionID  string `json:"electionId"`
	CandidateID string `json:"candidateId"`
	Position    string `json:"position"`
}

// Response types

// CastVoteResponse omits the tally fields when the vote was stored but its
// tally could not be read back.
type CastVoteResponse struct {
	VoteID            string    `json:"voteId"`
	ElectionID        string    `json:"electionId"`
	CastAt            time.Time `json:"castAt"`
	TotalVotes        *int      `json:"totalVotes,omitempty"`
	TurnoutPercentage *int      `json:"turnoutPercentage,omitempty"`
	Message           string    `json:"message"`
}

type VoteStatusResponse struct {
	ElectionID string     `json:"electionId"`
	HasVoted   bool       `json:"hasVoted"`
	VoteID     string     `json:"voteId,omitempty"`
	CastAt     *time.Time `json:"castAt,omitempty"`
}

type VotingHistoryResponse struct {
	Votes []Vote `json:"votes"`
}

type ResultsSnapshot struct {
	Tally           Tally                       `json:"tally"`
	Leaders         map[string][]CandidateCount `json:"leaders"`
	InputsHash      string                      `json:"inputsHash"`
	Watchers        int                         `json:"watchers"`
	LiveSubscribers int                         `json:"liveSubscribers"`
	ComputedAt      time.Time                   `json:"computedAt"`
}

// Event payloads

type VoteCastEvent struct {
	ElectionID        string    `json:"electionId"`
	TotalVotes        int       `json:"totalVotes"`
	TurnoutPercentage int       `json:"turnoutPercentage"`
	Timestamp         time.Time `json:"timestamp"`
}

type LiveResultsEvent struct {
	ElectionID        string                      `json:"electionId"`
	TotalVotes        int                         `json:"totalVotes"`
	TurnoutPercentage int                         `json:"turnoutPercentage"`
	Results           map[string][]CandidateCount `json:"results"`
	LastUpdated       time.Time                   `json:"lastUpdated"`
}

type TurnoutMilestoneEvent struct {
	ElectionID     string    `json:"electionId"`
	Milestone      int       `json:"milestone"`
	CurrentTurnout int       `json:"currentTurnout"`
	Timestamp      time.Time `json:"timestamp"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
