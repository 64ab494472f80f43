package negotiation

import (
	"context"
	"fmt"
	"strings"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// Prompt is the context handed to the utterance proposer. The proposer
// only phrases; the decision fields are already fixed.
type Prompt struct {
	Phase        protocol.SessionPhase
	Request      protocol.TripRequest
	VendorName   string
	Decision     *Decision // set for negotiating and confirming turns
	AgreedPrice  float64   // set for confirming turns
	TacticAdvice string    // retrieved snippet, advisory only
}

// UtteranceProposer turns a prompt into what the agent actually says. An
// LLM-backed implementation plugs in here; correctness of the negotiation
// protocol never depends on the phrasing.
type UtteranceProposer interface {
	Propose(ctx context.Context, p Prompt) (string, error)
}

// TemplateProposer is the default deterministic proposer.
type TemplateProposer struct{}

func (TemplateProposer) Propose(_ context.Context, p Prompt) (string, error) {
	r := p.Request
	switch p.Phase {
	case protocol.PhaseGreeting:
		return fmt.Sprintf("Namaste, I am calling about a %s in %s.", r.Category, r.Destination), nil

	case protocol.PhaseQualifying:
		return fmt.Sprintf("We are %d people, %s to %s. Are you available?",
			r.PartySize, r.StartDate, r.EndDate), nil

	case protocol.PhasePitching:
		req := ""
		if len(r.Requirements) > 0 {
			req = " We need " + strings.Join(r.Requirements, ", ") + "."
		}
		return fmt.Sprintf("A %s for %d people in %s.%s What would you charge?",
			r.Category, r.PartySize, r.Destination, req), nil

	case protocol.PhaseNegotiating:
		if p.Decision == nil {
			return "", fmt.Errorf("proposer: negotiating turn without a decision")
		}
		switch p.Decision.Action {
		case ActionHold:
			return fmt.Sprintf("%.0f is my final rate, otherwise we will ask elsewhere.", p.Decision.Price), nil
		default:
			return fmt.Sprintf("That is too much. We can do %.0f.", p.Decision.Price), nil
		}

	case protocol.PhaseConfirming:
		return fmt.Sprintf("So confirmed: %s for %d people at %.0f. Pakka?",
			r.Category, r.PartySize, p.AgreedPrice), nil

	case protocol.PhaseClosing:
		return fmt.Sprintf("Done, %.0f it is. Thank you!", p.AgreedPrice), nil
	}
	return "", fmt.Errorf("proposer: no template for phase %s", p.Phase)
}
