// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/campusvote/livetally/middleware"
	"github.com/campusvote/livetally/service"
)

type ResultsHandler struct {
	svc *service.Service
}

func NewResultsHandler(svc *service.Service) *ResultsHandler {
	return &ResultsHandler{svc: svc}
}

// LiveTally handles GET /api/analytics/live/{electionId}
// Served from the in-memory tally; it may trail the ledger by the votes in flight.
func (h *ResultsHandler) LiveTally(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("electionId")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "electionId is required")
		return
	}

	t, err := h.svc.LiveTally(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, t)
}

// Results handles GET /api/voting/results/{electionId}
// Admin only. Recomputed from the ledger on every call.
func (h *ResultsHandler) Results(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("electionId")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "electionId is required")
		return
	}

	snap, err := h.svc.Results(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snap)
}
