// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package domainerr holds the rejection taxonomy shared by the ledger, the
// tally engine and the submission service.
package domainerr

import (
	"context"
	"errors"
)

var (
	ErrValidation         = errors.New("invalid vote request")
	ErrElectionNotActive  = errors.New("election is not active")
	ErrCandidateMismatch  = errors.New("candidate does not match election and position")
	ErrNotEligible        = errors.New("voter is not eligible for this election")
	ErrDuplicateVote      = errors.New("voter has already voted in this election")
	ErrElectionNotFound   = errors.New("election not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrOutcomeUnknown     = errors.New("vote outcome unknown")
)

// Reason strings returned to callers
const (
	ReasonValidation         = "ValidationError"
	ReasonElectionNotActive  = "ElectionNotActive"
	ReasonCandidateMismatch  = "CandidateMismatch"
	ReasonNotEligible        = "NotEligible"
	ReasonDuplicateVote      = "DuplicateVote"
	ReasonElectionNotFound   = "ElectionNotFound"
	ReasonStorageUnavailable = "StorageUnavailable"
	ReasonOutcomeUnknown     = "OutcomeUnknown"
	ReasonUnknown            = "Unknown"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrValidation, ReasonValidation},
	{ErrElectionNotActive, ReasonElectionNotActive},
	{ErrCandidateMismatch, ReasonCandidateMismatch},
	{ErrNotEligible, ReasonNotEligible},
	{ErrDuplicateVote, ReasonDuplicateVote},
	{ErrElectionNotFound, ReasonElectionNotFound},
	{ErrStorageUnavailable, ReasonStorageUnavailable},
	{ErrOutcomeUnknown, ReasonOutcomeUnknown},
}

// Reason maps err to its wire reason. Unrecognized errors are "Unknown".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonUnknown
}

// Retryable reports whether the operation may be attempted again unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsBusinessRule reports whether err is a final rejection that must never be retried.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrElectionNotActive) ||
		errors.Is(err, ErrCandidateMismatch) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrDuplicateVote)
}

// IsTimeout reports whether err comes from an expired or cancelled context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
