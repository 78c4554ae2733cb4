// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/campusvote/livetally/auth"
	"github.com/campusvote/livetally/middleware"
	"github.com/campusvote/livetally/models"
	"github.com/campusvote/livetally/service"
)

type VotingHandler struct {
	svc *service.Service
}

func NewVotingHandler(svc *service.Service) *VotingHandler {
	return &VotingHandler{svc: svc}
}

// CastVote handles POST /api/voting/cast-vote
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ack, err := h.svc.Submit(r.Context(), p, req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := models.CastVoteResponse{
		VoteID:     ack.Vote.ID,
		ElectionID: ack.Vote.ElectionID,
		CastAt:     ack.Vote.CastAt,
		Message:    "Vote cast successfully",
	}
	if ack.Tallied {
		resp.TotalVotes = &ack.Tally.TotalVotes
		resp.TurnoutPercentage = &ack.Tally.TurnoutPercentage
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// VoteStatus handles GET /api/voting/status/{electionId}
func (h *VotingHandler) VoteStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}

	electionID := r.PathValue("electionId")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "electionId is required")
		return
	}

	status, err := h.svc.VoteStatus(r.Context(), p, electionID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, status)
}

// History handles GET /api/voting/history
func (h *VotingHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}

	votes, err := h.svc.History(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.VotingHistoryResponse{Votes: votes})
}
