package protocol

import (
	"fmt"
	"time"
)

// TripPhase represents the lifecycle state of a trip.
type TripPhase string

const (
	TripPlanning    TripPhase = "planning"
	TripScouting    TripPhase = "scouting"
	TripVetting     TripPhase = "vetting"
	TripNegotiating TripPhase = "negotiating"
	TripConfirming  TripPhase = "confirming"
	TripComplete    TripPhase = "complete"
	TripFailed      TripPhase = "failed"
)

// Terminal reports whether the phase is a final state.
func (p TripPhase) Terminal() bool {
	return p == TripComplete || p == TripFailed
}

// TripRequest describes what the user wants procured. Budget tiers are
// min (floor), max (target ceiling) and stretch (absolute ceiling),
// ordered min ≤ max ≤ stretch. A request is immutable once created.
type TripRequest struct {
	Destination   string         `json:"destination"`
	StartDate     string         `json:"start_date"`
	EndDate       string         `json:"end_date"`
	PartySize     int            `json:"party_size"`
	BudgetMin     float64        `json:"budget_min"`
	BudgetMax     float64        `json:"budget_max"`
	BudgetStretch float64        `json:"budget_stretch"`
	Category      VendorCategory `json:"category"`
	Requirements  []string       `json:"requirements,omitempty"`
}

// Validate checks the request invariants.
func (r TripRequest) Validate() error {
	if r.Destination == "" {
		return fmt.Errorf("trip request: destination is required")
	}
	if r.PartySize <= 0 {
		return fmt.Errorf("trip request: party_size must be positive")
	}
	if r.Category == "" {
		return fmt.Errorf("trip request: category is required")
	}
	if r.BudgetMin <= 0 {
		return fmt.Errorf("trip request: budget_min must be positive")
	}
	if r.BudgetMin > r.BudgetMax || r.BudgetMax > r.BudgetStretch {
		return fmt.Errorf("trip request: budgets must satisfy min ≤ max ≤ stretch (got %v/%v/%v)",
			r.BudgetMin, r.BudgetMax, r.BudgetStretch)
	}
	return nil
}

// Deal is the final accepted result of a trip.
type Deal struct {
	SessionID   string  `json:"session_id"`
	VendorPhone string  `json:"vendor_phone"`
	VendorName  string  `json:"vendor_name"`
	FinalPrice  float64 `json:"final_price"`
	StretchFlag bool    `json:"stretch_flag,omitempty"` // price was above budget_max but within stretch
}

// TripState is the persisted state of one trip. Phase transitions are the
// only permitted mutation; the embedded request never changes.
type TripState struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id,omitempty"`
	Request       TripRequest `json:"request"`
	Phase         TripPhase   `json:"phase"`
	Deal          *Deal       `json:"deal,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
