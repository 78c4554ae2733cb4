// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusvote/livetally/domainerr"
	"github.com/campusvote/livetally/middleware"
	"github.com/campusvote/livetally/models"
	"github.com/campusvote/livetally/testutil"
)

func TestLiveTally(t *testing.T) {
	conn, svc, _ := newTestService(t)
	cast := middleware.RequireAuth(testutil.TestTokenSecret, NewVotingHandler(svc).CastVote)
	liveTally := middleware.RequireAuth(testutil.TestTokenSecret, NewResultsHandler(svc).LiveTally)

	electionID := testutil.CreateTestElection(t, conn, models.StatusActive, 3, "President")
	alice := testutil.AddTestCandidate(t, conn, electionID, "President", "Alice")
	bob := testutil.AddTestCandidate(t, conn, electionID, "President", "Bob")

	for i, candidate := range []string{alice, alice} {
		w := httptest.NewRecorder()
		cast(w, testutil.MakeRequest("POST", "/api/voting/cast-vote",
			models.CastVoteRequest{ElectionID: electionID, CandidateID: candidate, Position: "President"},
			testutil.AuthHeaders(t, "student-"+string(rune('a'+i)), models.RoleVoter)))
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	tests := []struct {
		name           string
		electionID     string
		expectedStatus int
		checkResponse  func(t *testing.T, resp *models.Tally)
	}{
		{
			name:           "active election",
			electionID:     electionID,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *models.Tally) {
				if resp.TotalVotes != 2 || resp.TurnoutPercentage != 67 {
					t.Errorf("Expected 2 votes at 67%%, got %d at %d%%", resp.TotalVotes, resp.TurnoutPercentage)
				}
				got := resp.Results["President"]
				if len(got) != 2 || got[0].CandidateID != alice || got[0].Votes != 2 || got[1].CandidateID != bob || got[1].Votes != 0 {
					t.Errorf("Unexpected results: %+v", got)
				}
			},
		},
		{
			name:           "unknown election",
			electionID:     "no-such-election",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Any authenticated caller may read the live tally
			req := testutil.MakeRequest("GET", "/api/analytics/live/"+tt.electionID, nil, testutil.AuthHeaders(t, "student-z", models.RoleVoter))
			req.SetPathValue("electionId", tt.electionID)
			w := httptest.NewRecorder()

			liveTally(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus == http.StatusOK && tt.checkResponse != nil {
				var resp models.Tally
				testutil.AssertJSON(t, w, &resp)
				tt.checkResponse(t, &resp)
			}
		})
	}
}

func TestResults(t *testing.T) {
	conn, svc, _ := newTestService(t)
	cast := middleware.RequireAuth(testutil.TestTokenSecret, NewVotingHandler(svc).CastVote)
	results := middleware.RequireAuth(testutil.TestTokenSecret,
		middleware.RequireRole(models.RoleAdmin, NewResultsHandler(svc).Results))

	electionID := testutil.CreateTestElection(t, conn, models.StatusActive, 4, "President")
	alice := testutil.AddTestCandidate(t, conn, electionID, "President", "Alice")
	bob := testutil.AddTestCandidate(t, conn, electionID, "President", "Bob")

	for i, candidate := range []string{alice, bob} {
		w := httptest.NewRecorder()
		cast(w, testutil.MakeRequest("POST", "/api/voting/cast-vote",
			models.CastVoteRequest{ElectionID: electionID, CandidateID: candidate, Position: "President"},
			testutil.AuthHeaders(t, "student-"+string(rune('a'+i)), models.RoleVoter)))
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	tests := []struct {
		name           string
		role           string
		electionID     string
		expectedStatus int
		expectedReason string
		checkResponse  func(t *testing.T, resp *models.ResultsSnapshot)
	}{
		{
			name:           "admin sees snapshot",
			role:           models.RoleAdmin,
			electionID:     electionID,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *models.ResultsSnapshot) {
				if resp.Tally.TotalVotes != 2 || resp.Tally.TurnoutPercentage != 50 {
					t.Errorf("Expected 2 votes at 50%%, got %d at %d%%", resp.Tally.TotalVotes, resp.Tally.TurnoutPercentage)
				}
				if leaders := resp.Leaders["President"]; len(leaders) != 2 {
					t.Errorf("Expected a two-way tie, got %+v", leaders)
				}
				if len(resp.InputsHash) != 64 {
					t.Errorf("Expected hex sha3-256 digest, got %q", resp.InputsHash)
				}
			},
		},
		{
			name:           "voter denied",
			role:           models.RoleVoter,
			electionID:     electionID,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "unknown election",
			role:           models.RoleAdmin,
			electionID:     "no-such-election",
			expectedStatus: http.StatusNotFound,
			expectedReason: domainerr.ReasonElectionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/api/voting/results/"+tt.electionID, nil, testutil.AuthHeaders(t, "user-1", tt.role))
			req.SetPathValue("electionId", tt.electionID)
			w := httptest.NewRecorder()

			results(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			switch {
			case tt.expectedStatus == http.StatusOK && tt.checkResponse != nil:
				var resp models.ResultsSnapshot
				testutil.AssertJSON(t, w, &resp)
				tt.checkResponse(t, &resp)
			case tt.expectedReason != "":
				var resp models.ErrorResponse
				testutil.AssertJSON(t, w, &resp)
				if resp.Reason != tt.expectedReason {
					t.Errorf("Expected reason %q, got %q", tt.expectedReason, resp.Reason)
				}
			}
		})
	}
}
