// Package negotiation runs one turn-based bargaining session per vendor.
// The structured decisions (accept/reject/counter amount, tactic) are pure
// functions over an explicit state struct; phrasing is produced separately
// by an UtteranceProposer and never influences the protocol.
package negotiation

// DefaultMaxRounds bounds the bargaining loop.
const DefaultMaxRounds = 6

// Action is what the agent does this round.
type Action string

const (
	// ActionAccept takes the vendor's current price.
	ActionAccept Action = "accept"
	// ActionCounter proposes a new price.
	ActionCounter Action = "counter"
	// ActionHold repeats the previous offer as a walk-away signal.
	ActionHold Action = "hold"
	// ActionReject gives up: rounds exhausted without an acceptable price.
	ActionReject Action = "reject"
)

// Bargain is the decision input for one round.
type Bargain struct {
	Round     int // 1-based; Round == MaxRounds is the final permitted round
	MaxRounds int

	MarketRate  float64 // 0 = no estimate; the anchor tactic is skipped
	VendorPrice float64 // vendor's last stated price
	AgentPrice  float64 // agent's last offer; 0 = none made yet

	// PriceRepeats counts consecutive rounds the vendor restated an
	// unchanged price.
	PriceRepeats int

	BudgetMax     float64
	BudgetStretch float64
}

// Decision is the structured outcome of one round.
type Decision struct {
	Action      Action
	Price       float64 // accepted price or counter-offer
	Tactic      string  // label for the event log and tactic retrieval
	StretchFlag bool    // accepted above budget max, within stretch
}

// Decide applies the acceptance criterion and tactic-selection policy.
//
// Acceptance: a price at or under budget max is taken immediately; a price
// in (max, stretch] is taken only on the final permitted round, flagged.
// Otherwise the round counters, and an exhausted round budget rejects.
func Decide(b Bargain) Decision {
	if b.VendorPrice > 0 && b.VendorPrice <= b.BudgetMax {
		return Decision{Action: ActionAccept, Price: b.VendorPrice, Tactic: "within_budget"}
	}
	final := b.Round >= b.MaxRounds
	if final {
		if b.VendorPrice > 0 && b.VendorPrice <= b.BudgetStretch {
			return Decision{Action: ActionAccept, Price: b.VendorPrice, Tactic: "stretch_close", StretchFlag: true}
		}
		return Decision{Action: ActionReject, Tactic: "rounds_exhausted"}
	}

	// Anchor on the opening counter, and whenever the quote is far above
	// market (more than 30% over).
	if b.MarketRate > 0 && (b.AgentPrice == 0 || b.VendorPrice > 1.3*b.MarketRate) {
		price := min(b.MarketRate, b.VendorPrice*0.85)
		return Decision{Action: ActionCounter, Price: clamp(price, b.BudgetStretch), Tactic: "anchor_low"}
	}

	// A price repeated for two consecutive rounds gets a flat walk-away
	// counter.
	if b.PriceRepeats >= 2 && b.AgentPrice > 0 {
		return Decision{Action: ActionHold, Price: b.AgentPrice, Tactic: "walk_away"}
	}

	// Otherwise converge on the midpoint, never exceeding stretch.
	agent := b.AgentPrice
	if agent == 0 {
		// No offer on the table yet and no market anchor: start from the
		// budget ceiling.
		agent = b.BudgetMax
	}
	mid := (agent + b.VendorPrice) / 2
	return Decision{Action: ActionCounter, Price: clamp(mid, b.BudgetStretch), Tactic: "split_difference"}
}

func clamp(price, stretch float64) float64 {
	if price > stretch {
		return stretch
	}
	return price
}
