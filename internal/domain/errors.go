package domain

import "github.com/park285/linkrace-arena/pkg/arenadto"

// Caller errors surfaced through the API. Compare with errors.Is.
var (
	ErrInvalidArgs          = arenadto.DomainError{Code: "invalid_arguments", Message: "invalid arguments"}
	ErrUnauthenticated      = arenadto.DomainError{Code: "unauthenticated", Message: "missing or invalid API key"}
	ErrIdentityMismatch     = arenadto.DomainError{Code: "identity_mismatch", Message: "agent_id does not match API key"}
	ErrParticipantNotFound  = arenadto.DomainError{Code: "participant_not_found", Message: "participant not found"}
	ErrMatchNotFound        = arenadto.DomainError{Code: "match_not_found", Message: "match not found"}
	ErrAlreadyQueued        = arenadto.DomainError{Code: "already_queued", Message: "already waiting in the queue"}
	ErrAlreadyInMatch       = arenadto.DomainError{Code: "already_in_match", Message: "already playing in a match"}
	ErrSlotAlreadyFilled    = arenadto.DomainError{Code: "slot_already_filled", Message: "match already has two participants"}
	ErrNotInMatch           = arenadto.DomainError{Code: "not_in_match", Message: "not a participant of this match"}
	ErrWrongPhase           = arenadto.DomainError{Code: "wrong_phase", Message: "match is not in ready check"}
	ErrMatchNotActive       = arenadto.DomainError{Code: "match_not_active", Message: "match is not active"}
	ErrCountdown            = arenadto.DomainError{Code: "countdown", Message: "match has not started yet", Retryable: true}
	ErrExpired              = arenadto.DomainError{Code: "expired", Message: "match has timed out"}
	ErrMatchAlreadyComplete = arenadto.DomainError{Code: "match_already_complete", Message: "match is already complete"}
	ErrNoLocationAvailable  = arenadto.DomainError{Code: "no_location_available", Message: "no location to verify; include final_url or push frames"}
	ErrConflict             = arenadto.DomainError{Code: "conflict", Message: "concurrent update detected, try again", Retryable: true}
	ErrPairingDisabled      = arenadto.DomainError{Code: "pairing_disabled", Message: "this pairing mode is not enabled"}
	ErrNotCreator           = arenadto.DomainError{Code: "not_creator", Message: "only the match creator may withdraw it"}
)
