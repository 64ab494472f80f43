package protocol

import "time"

// SessionPhase is the state of one negotiation call. Phases advance strictly
// forward, except the universal exits Failed and Aborted, and the single
// allowed Confirming → Negotiating reversion on vendor refusal.
type SessionPhase string

const (
	PhaseDialing     SessionPhase = "dialing"
	PhaseGreeting    SessionPhase = "greeting"
	PhaseQualifying  SessionPhase = "qualifying"
	PhasePitching    SessionPhase = "pitching"
	PhaseNegotiating SessionPhase = "negotiating"
	PhaseConfirming  SessionPhase = "confirming"
	PhaseClosing     SessionPhase = "closing"
	PhaseFailed      SessionPhase = "failed"
	PhaseAborted     SessionPhase = "aborted"
)

// Terminal reports whether the phase ends the session.
func (p SessionPhase) Terminal() bool {
	return p == PhaseClosing || p == PhaseFailed || p == PhaseAborted
}

// Outcome is the terminal result of a negotiation session.
type Outcome string

const (
	OutcomeAgreed            Outcome = "agreed"
	OutcomeRejected          Outcome = "rejected"
	OutcomeNoAnswer          Outcome = "no_answer"
	OutcomeFraudDetected     Outcome = "fraud_detected"
	OutcomeVendorUnavailable Outcome = "vendor_unavailable"
	OutcomeSessionTimeout    Outcome = "session_timeout"
)

// Speaker identifies who produced an utterance in the event log.
type Speaker string

const (
	SpeakerAgent  Speaker = "agent"
	SpeakerVendor Speaker = "vendor"
	SpeakerSystem Speaker = "system"
)

// SessionEvent is one entry in a session's ordered event log. The log is
// the sole source of truth for replay and audit.
type SessionEvent struct {
	Speaker   Speaker      `json:"speaker"`
	Utterance string       `json:"utterance"`
	Phase     SessionPhase `json:"phase"`
	Timestamp time.Time    `json:"timestamp"`
}

// Session is one continuous negotiation attempt against one vendor for one
// trip. Owned by its negotiation engine while live; persisted as an
// immutable audit record once terminal.
type Session struct {
	ID              string         `json:"id"`
	TripID          string         `json:"trip_id"`
	VendorPhone     string         `json:"vendor_phone"`
	VendorName      string         `json:"vendor_name,omitempty"`
	Phase           SessionPhase   `json:"phase"`
	Round           int            `json:"round"`
	MarketRate      float64        `json:"market_rate,omitempty"` // 0 = no estimate
	VendorLastPrice float64        `json:"vendor_last_price,omitempty"`
	AgentLastPrice  float64        `json:"agent_last_price,omitempty"`
	FinalPrice      float64        `json:"final_price,omitempty"`
	StretchFlag     bool           `json:"stretch_flag,omitempty"`
	Outcome         Outcome        `json:"outcome,omitempty"`
	SafetyFlags     []string       `json:"safety_flags,omitempty"`
	Events          []SessionEvent `json:"events"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at,omitempty"`
}

// Append records a transition or utterance in the event log.
func (s *Session) Append(sp Speaker, utterance string) {
	s.Events = append(s.Events, SessionEvent{
		Speaker:   sp,
		Utterance: utterance,
		Phase:     s.Phase,
		Timestamp: time.Now(),
	})
}

// Transcript returns the utterances spoken so far, in order, excluding
// system markers.
func (s *Session) Transcript() []SessionEvent {
	out := make([]SessionEvent, 0, len(s.Events))
	for _, e := range s.Events {
		if e.Speaker != SpeakerSystem {
			out = append(out, e)
		}
	}
	return out
}
