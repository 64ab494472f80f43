package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tolmol-io/tolmol/internal/safety"
	"github.com/tolmol-io/tolmol/internal/tactics"
	"github.com/tolmol-io/tolmol/internal/telephony"
	"github.com/tolmol-io/tolmol/pkg/protocol"
)

const (
	defaultDialRetries       = 2
	defaultInactivityTimeout = 300 * time.Second
)

// Engine drives one negotiation session per Run call. Failures never leave
// Run as errors; they become terminal session outcomes.
type Engine struct {
	Dialer   telephony.Dialer
	Proposer UtteranceProposer
	Tactics  tactics.Retriever
	Logger   *slog.Logger

	MaxRounds   int           // 0 = DefaultMaxRounds
	DialRetries int           // extra dial attempts after the first; -1 = none
	Inactivity  time.Duration // wall-clock wait per inbound event; 0 = 300s
}

// Result is what one session reports back to the orchestrator.
type Result struct {
	Session *protocol.Session
	// Answered means the call got past dialing, so it counts toward the
	// vendor's call stats.
	Answered bool
	// Blacklist is set on a CRITICAL fraud signal.
	Blacklist bool
	// DiscountPct is the achieved discount from the initial ask, valid
	// only on OutcomeAgreed.
	DiscountPct float64
}

func (e *Engine) maxRounds() int {
	if e.MaxRounds > 0 {
		return e.MaxRounds
	}
	return DefaultMaxRounds
}

func (e *Engine) dialRetries() int {
	if e.DialRetries < 0 {
		return 0
	}
	if e.DialRetries == 0 {
		return defaultDialRetries
	}
	return e.DialRetries
}

func (e *Engine) inactivity() time.Duration {
	if e.Inactivity > 0 {
		return e.Inactivity
	}
	return defaultInactivityTimeout
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) proposer() UtteranceProposer {
	if e.Proposer != nil {
		return e.Proposer
	}
	return TemplateProposer{}
}

// Control-flow sentinel inside one run; it never escapes Run.
var errCallEnded = errors.New("call ended")

// run bundles the per-session state the phase steps share.
type run struct {
	engine  *Engine
	session *protocol.Session
	call    telephony.Call
	req     protocol.TripRequest
	log     *slog.Logger

	initialAsk   float64
	priceRepeats int
}

// Run executes the full session state machine against one vendor. The
// returned session is always terminal; partial transcripts survive
// cancellation for audit.
func (e *Engine) Run(ctx context.Context, tripID, vendorPhone, vendorName string, req protocol.TripRequest, marketRate float64) *Result {
	s := &protocol.Session{
		ID:          uuid.NewString(),
		TripID:      tripID,
		VendorPhone: vendorPhone,
		VendorName:  vendorName,
		Phase:       protocol.PhaseDialing,
		MarketRate:  marketRate,
		StartedAt:   time.Now(),
	}
	log := e.logger().With("session", s.ID, "trip", tripID, "vendor", vendorPhone)
	res := &Result{Session: s}

	call, err := e.dial(ctx, s, vendorPhone, log)
	if err != nil {
		e.terminate(s, nil, protocol.PhaseFailed, protocol.OutcomeNoAnswer, "dial failed")
		log.Info("session over", "outcome", s.Outcome)
		return res
	}
	res.Answered = true

	r := &run{engine: e, session: s, call: call, req: req, log: log}
	if err := r.converse(ctx, res); err != nil {
		r.finishWithError(err, res)
	}
	log.Info("session over", "outcome", s.Outcome, "rounds", s.Round, "final_price", s.FinalPrice)
	return res
}

func (e *Engine) dial(ctx context.Context, s *protocol.Session, number string, log *slog.Logger) (telephony.Call, error) {
	s.Append(protocol.SpeakerSystem, "dialing "+number)
	attempts := 1 + e.dialRetries()
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var call telephony.Call
		call, err = e.Dialer.PlaceCall(ctx, number)
		if err == nil {
			return call, nil
		}
		log.Debug("dial attempt failed", "attempt", i+1, "error", err)
	}
	return nil, err
}

// converse walks greeting through closing. Any returned error is mapped to
// a terminal outcome by finishWithError.
func (r *run) converse(ctx context.Context, res *Result) error {
	// GREETING and QUALIFYING establish availability.
	for _, phase := range []protocol.SessionPhase{protocol.PhaseGreeting, protocol.PhaseQualifying} {
		r.setPhase(phase)
		if err := r.say(ctx, Prompt{Phase: phase, Request: r.req, VendorName: r.session.VendorName}); err != nil {
			return err
		}
		reply, err := r.hear(ctx)
		if err != nil {
			return err
		}
		if IsDecline(reply) {
			return protocol.ErrVendorUnavailable
		}
	}

	// PITCHING: state the requirement and get the opening quote.
	r.setPhase(protocol.PhasePitching)
	if err := r.say(ctx, Prompt{Phase: protocol.PhasePitching, Request: r.req}); err != nil {
		return err
	}
	quote, err := r.openingQuote(ctx)
	if err != nil {
		return err
	}
	r.initialAsk = quote
	r.session.VendorLastPrice = quote

	// NEGOTIATING: the bounded bargaining loop.
	r.setPhase(protocol.PhaseNegotiating)
	maxRounds := r.engine.maxRounds()
	for {
		r.session.Round++
		d := Decide(Bargain{
			Round:         r.session.Round,
			MaxRounds:     maxRounds,
			MarketRate:    r.session.MarketRate,
			VendorPrice:   r.session.VendorLastPrice,
			AgentPrice:    r.session.AgentLastPrice,
			PriceRepeats:  r.priceRepeats,
			BudgetMax:     r.req.BudgetMax,
			BudgetStretch: r.req.BudgetStretch,
		})
		r.session.Append(protocol.SpeakerSystem,
			fmt.Sprintf("round %d: %s (%s)", r.session.Round, d.Action, d.Tactic))

		switch d.Action {
		case ActionReject:
			return protocol.ErrRejected

		case ActionAccept:
			agreed, err := r.confirm(ctx, d)
			if err != nil {
				return err
			}
			if agreed {
				r.close(ctx, d, res)
				return nil
			}
			// Confirmation refused: revert to NEGOTIATING with the
			// round already spent.
			if r.session.Round >= maxRounds {
				return protocol.ErrRejected
			}
			r.setPhase(protocol.PhaseNegotiating)

		case ActionCounter, ActionHold:
			advice := r.tacticAdvice(ctx, d)
			prompt := Prompt{
				Phase:        protocol.PhaseNegotiating,
				Request:      r.req,
				Decision:     &d,
				TacticAdvice: advice,
			}
			if err := r.say(ctx, prompt); err != nil {
				return err
			}
			r.session.AgentLastPrice = d.Price

			reply, err := r.hear(ctx)
			if err != nil {
				return err
			}
			r.noteVendorReply(reply, d)
		}
	}
}

// openingQuote listens for the vendor's initial ask, tolerating one
// price-free reply before giving up.
func (r *run) openingQuote(ctx context.Context) (float64, error) {
	for i := 0; i < 2; i++ {
		reply, err := r.hear(ctx)
		if err != nil {
			return 0, err
		}
		if IsDecline(reply) {
			return 0, protocol.ErrVendorUnavailable
		}
		if p, ok := ParsePrice(reply); ok {
			return p, nil
		}
	}
	return 0, protocol.ErrVendorUnavailable
}

// noteVendorReply updates price tracking after a counter was sent.
func (r *run) noteVendorReply(reply string, d Decision) {
	p, ok := ParsePrice(reply)
	if !ok {
		if IsAffirmative(reply) {
			// Plain agreement to our counter puts our price on the table.
			r.session.VendorLastPrice = d.Price
			r.priceRepeats = 0
			return
		}
		// No new number: the vendor is standing firm.
		r.priceRepeats++
		return
	}
	if p == r.session.VendorLastPrice {
		r.priceRepeats++
	} else {
		r.priceRepeats = 0
	}
	r.session.VendorLastPrice = p
}

// confirm restates the deal and waits for explicit agreement.
func (r *run) confirm(ctx context.Context, d Decision) (bool, error) {
	r.setPhase(protocol.PhaseConfirming)
	prompt := Prompt{
		Phase:       protocol.PhaseConfirming,
		Request:     r.req,
		Decision:    &d,
		AgreedPrice: d.Price,
	}
	if err := r.say(ctx, prompt); err != nil {
		return false, err
	}
	reply, err := r.hear(ctx)
	if err != nil {
		return false, err
	}
	if IsAffirmative(reply) && !IsDecline(reply) {
		return true, nil
	}
	r.session.Append(protocol.SpeakerSystem, "confirmation refused")
	// The refusal may carry a new price.
	if p, ok := ParsePrice(reply); ok && p != r.session.VendorLastPrice {
		r.session.VendorLastPrice = p
		r.priceRepeats = 0
	}
	return false, nil
}

// close runs the terminal success path.
func (r *run) close(ctx context.Context, d Decision, res *Result) {
	r.setPhase(protocol.PhaseClosing)
	r.say(ctx, Prompt{Phase: protocol.PhaseClosing, Request: r.req, AgreedPrice: d.Price})

	s := r.session
	s.FinalPrice = d.Price
	s.StretchFlag = d.StretchFlag
	r.engine.terminate(s, r.call, protocol.PhaseClosing, protocol.OutcomeAgreed, "deal agreed")
	if r.initialAsk > 0 && d.Price < r.initialAsk {
		res.DiscountPct = (r.initialAsk - d.Price) / r.initialAsk * 100
	}
}

// finishWithError maps a session error to its terminal phase and outcome.
func (r *run) finishWithError(err error, res *Result) {
	s := r.session
	switch {
	case errors.Is(err, protocol.ErrFraudDetected):
		res.Blacklist = true
		r.engine.terminate(s, r.call, protocol.PhaseAborted, protocol.OutcomeFraudDetected, "critical fraud signal")
	case errors.Is(err, context.DeadlineExceeded):
		r.engine.terminate(s, r.call, protocol.PhaseFailed, protocol.OutcomeSessionTimeout, "inactivity timeout")
	case errors.Is(err, context.Canceled):
		r.engine.terminate(s, r.call, protocol.PhaseFailed, protocol.OutcomeSessionTimeout, "session cancelled")
	case errors.Is(err, errCallEnded):
		r.engine.terminate(s, r.call, protocol.PhaseFailed, protocol.OutcomeNoAnswer, "call dropped")
	default:
		r.engine.terminate(s, r.call, protocol.PhaseFailed, protocol.OutcomeForError(err), err.Error())
	}
}

// terminate sets the terminal state exactly once and releases the call.
func (e *Engine) terminate(s *protocol.Session, call telephony.Call, phase protocol.SessionPhase, outcome protocol.Outcome, note string) {
	if s.Phase.Terminal() && s.Outcome != "" {
		return
	}
	s.Phase = phase
	s.Outcome = outcome
	s.EndedAt = time.Now()
	s.Append(protocol.SpeakerSystem, note)
	if call != nil {
		call.Hangup()
	}
}

func (r *run) setPhase(p protocol.SessionPhase) {
	r.session.Phase = p
	r.session.Append(protocol.SpeakerSystem, "phase "+string(p))
}

// say proposes and speaks one agent utterance.
func (r *run) say(ctx context.Context, p Prompt) error {
	text, err := r.engine.proposer().Propose(ctx, p)
	if err != nil {
		return fmt.Errorf("propose: %w", err)
	}
	if err := r.call.Send(ctx, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errCallEnded
	}
	r.session.Append(protocol.SpeakerAgent, text)
	return nil
}

// hear waits for the next vendor utterance, bounded by the inactivity
// timeout, and feeds it through the streaming fraud scan.
func (r *run) hear(ctx context.Context) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.engine.inactivity())
	defer cancel()

	ev, err := r.call.Receive(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if waitCtx.Err() != nil {
			return "", context.DeadlineExceeded
		}
		return "", errCallEnded
	}
	if ev.Kind == telephony.EventEnded {
		return "", errCallEnded
	}

	r.session.Append(protocol.SpeakerVendor, ev.Text)

	// Streaming safety scan on every inbound utterance, regardless of
	// phase.
	matches := safety.ScanUtterance(ev.Text)
	for _, m := range matches {
		r.session.SafetyFlags = append(r.session.SafetyFlags, m.Name)
		if m.Severity == safety.SeverityWarning {
			r.log.Warn("fraud signal", "signal", m.Name, "severity", m.Severity)
		}
	}
	if safety.Critical(matches) {
		return "", protocol.ErrFraudDetected
	}
	return ev.Text, nil
}

// tacticAdvice pulls the top retrieval snippet for the round; retrieval
// problems never stall a live call.
func (r *run) tacticAdvice(ctx context.Context, d Decision) string {
	if r.engine.Tactics == nil {
		return ""
	}
	desc := fmt.Sprintf("%s round, vendor at %.0f, tactic %s",
		r.req.Category, r.session.VendorLastPrice, d.Tactic)
	snips, err := r.engine.Tactics.Query(ctx, desc)
	if err != nil || len(snips) == 0 {
		return ""
	}
	return snips[0].Advice
}
