// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/campusvote/livetally/domainerr"
	"github.com/campusvote/livetally/middleware"
	"github.com/campusvote/livetally/models"
)

// statusFor maps the rejection taxonomy to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainerr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainerr.ErrCandidateMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainerr.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, domainerr.ErrElectionNotActive), errors.Is(err, domainerr.ErrDuplicateVote):
		return http.StatusConflict
	case errors.Is(err, domainerr.ErrElectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainerr.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domainerr.ErrOutcomeUnknown):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status and reason for err. Storage details
// are logged, never returned.
func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)

	message := err.Error()
	switch code {
	case http.StatusServiceUnavailable:
		slog.Warn("storage unavailable", "error", err)
		message = "Storage temporarily unavailable, please retry"
	case http.StatusGatewayTimeout:
		slog.Warn("vote outcome unknown", "error", err)
		message = "Vote outcome unknown, check your vote status before retrying"
	case http.StatusInternalServerError:
		slog.Error("request failed", "error", err)
		message = "Internal server error"
	}

	middleware.JSONResponse(w, code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Reason:  domainerr.Reason(err),
	})
}
