package protocol

import "errors"

// Sentinel errors for the failure taxonomy. Per-vendor failures are caught
// at the negotiation engine boundary and surface as session outcomes, never
// as errors to the orchestrator.
var (
	ErrInvalidPhoneFormat = errors.New("invalid phone format")
	ErrNoAnswer           = errors.New("no answer")
	ErrVendorUnavailable  = errors.New("vendor unavailable")
	ErrFraudDetected      = errors.New("fraud detected")
	ErrRejected           = errors.New("offer rejected")
	ErrSessionTimeout     = errors.New("session timeout")
	ErrDiscoverySource    = errors.New("discovery source failure")
	ErrPersistence        = errors.New("persistence failure")
)

// OutcomeForError maps a session-level error to its terminal outcome.
// Unknown errors count as no-answer: the call never completed.
func OutcomeForError(err error) Outcome {
	switch {
	case errors.Is(err, ErrFraudDetected):
		return OutcomeFraudDetected
	case errors.Is(err, ErrVendorUnavailable):
		return OutcomeVendorUnavailable
	case errors.Is(err, ErrSessionTimeout):
		return OutcomeSessionTimeout
	case errors.Is(err, ErrRejected):
		return OutcomeRejected
	default:
		return OutcomeNoAnswer
	}
}
