// Package trip drives the procurement pipeline for one trip request:
// discovery, vetting, concurrent negotiation and confirmation.
package trip

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tolmol-io/tolmol/internal/discovery"
	"github.com/tolmol-io/tolmol/internal/negotiation"
	"github.com/tolmol-io/tolmol/internal/notify"
	"github.com/tolmol-io/tolmol/internal/phone"
	"github.com/tolmol-io/tolmol/internal/pool"
	"github.com/tolmol-io/tolmol/internal/safety"
	"github.com/tolmol-io/tolmol/internal/store"
	"github.com/tolmol-io/tolmol/internal/tactics"
	"github.com/tolmol-io/tolmol/internal/telephony"
	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// persistRetries bounds how often a failed stats or session write is retried
// before the result is dropped with a log line.
const persistRetries = 3

// Orchestrator runs trips end to end. One orchestrator serves all trips; a
// trip's pipeline is single-threaded, sessions inside it are not.
type Orchestrator struct {
	Store    store.Store
	Sources  []discovery.Source
	Dialer   telephony.Dialer
	Proposer negotiation.UtteranceProposer
	Tactics  tactics.Retriever
	Notifier notify.Notifier
	Logger   *slog.Logger

	Normalizer phone.Normalizer
	Classifier safety.Classifier

	MaxRounds          int
	MaxConcurrentCalls int
	DialRetries        int
	SessionTimeout     time.Duration
	// HeuristicMarketRate substitutes the budget midpoint when no listing
	// carried a quote. Off by default: the engine then negotiates without
	// an anchor.
	HeuristicMarketRate bool
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) notifier() notify.Notifier {
	if o.Notifier != nil {
		return o.Notifier
	}
	return notify.Noop{}
}

// Create validates and persists a new trip in the planning phase. The
// request is immutable from here on.
func (o *Orchestrator) Create(req protocol.TripRequest, userID string) (*protocol.TripState, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t := &protocol.TripState{
		ID:        uuid.NewString(),
		UserID:    userID,
		Request:   req,
		Phase:     protocol.TripPlanning,
		CreatedAt: time.Now(),
	}
	if err := o.Store.SaveTrip(t); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}
	o.logger().Info("trip created", "trip", t.ID, "destination", req.Destination, "category", req.Category)
	return t, nil
}

// Run executes the pipeline until the trip is terminal. Safe to call again
// on an interrupted trip: discovery and vetting are recomputed from scratch,
// persisted sessions are honored instead of re-dialing, and completed trips
// return immediately.
func (o *Orchestrator) Run(ctx context.Context, t *protocol.TripState) error {
	if t.Phase.Terminal() {
		return nil
	}
	log := o.logger().With("trip", t.ID)

	ranked, marketRate, err := o.scout(ctx, t, log)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		return o.fail(ctx, t, "no vendors found", log)
	}

	safe := o.vet(t, ranked, log)
	if len(safe) == 0 {
		return o.fail(ctx, t, "no vendors passed vetting", log)
	}

	res, err := o.negotiate(ctx, t, safe, marketRate, log)
	if err != nil {
		return err
	}
	if res == nil {
		return o.fail(ctx, t, "no deal reached", log)
	}
	return o.confirm(ctx, t, res, log)
}

// scout fetches, dedups and ranks candidates. A missing market rate stays
// missing unless the heuristic fallback is enabled.
func (o *Orchestrator) scout(ctx context.Context, t *protocol.TripState, log *slog.Logger) ([]discovery.Ranked, float64, error) {
	o.setPhase(t, protocol.TripScouting, log)

	candidates := discovery.Fetch(ctx, o.Sources, t.Request.Category, t.Request.Destination, log)
	if ctx.Err() != nil {
		return nil, 0, ctx.Err()
	}

	res := discovery.Rank(candidates, o.Normalizer, func(p string) (float64, bool) {
		v, err := o.Store.GetVendor(p)
		if err != nil {
			return 0, false
		}
		return v.Stats.TrustScore, true
	})
	log.Info("scouting done", "candidates", len(candidates), "vendors", len(res.Vendors), "dropped", res.Dropped)

	marketRate := 0.0
	if res.HasMarketRate {
		marketRate = res.MarketRate
	} else if o.HeuristicMarketRate {
		marketRate = (t.Request.BudgetMin + t.Request.BudgetMax) / 2
		log.Info("no quoted prices, using budget midpoint as market rate", "rate", marketRate)
	}
	return res.Vendors, marketRate, nil
}

// vet persists the sighted vendors and drops every RED one.
func (o *Orchestrator) vet(t *protocol.TripState, ranked []discovery.Ranked, log *slog.Logger) []discovery.Ranked {
	o.setPhase(t, protocol.TripVetting, log)

	var safe []discovery.Ranked
	for _, r := range ranked {
		v := &protocol.Vendor{
			Phone:    r.Phone,
			Name:     r.Name,
			Category: r.Category,
			Location: r.Location,
		}
		if err := o.Store.UpsertVendor(v); err != nil {
			log.Warn("vendor upsert failed", "vendor", r.Phone, "error", err)
		}
		if known, err := o.Store.GetVendor(r.Phone); err == nil {
			v = known
		}

		a := o.Classifier.Classify(*v)
		if a.Level == protocol.RiskRed {
			log.Warn("vendor excluded", "vendor", r.Phone, "signals", a.Signals)
			continue
		}
		log.Debug("vendor vetted", "vendor", r.Phone, "risk", a.Level)
		safe = append(safe, r)
	}
	return safe
}

// negotiate runs bounded concurrent sessions in rank order and returns the
// winning result, or nil when no vendor agreed. Vendors that already hold a
// terminal session for this trip are never re-dialed: a crash between
// NEGOTIATING and COMPLETE resumes off the persisted records instead of
// duplicating calls.
func (o *Orchestrator) negotiate(ctx context.Context, t *protocol.TripState, vendors []discovery.Ranked, marketRate float64, log *slog.Logger) (*negotiation.Result, error) {
	o.setPhase(t, protocol.TripNegotiating, log)

	prior, err := o.Store.ListSessions(t.ID)
	if err != nil {
		return nil, fmt.Errorf("negotiate: load prior sessions: %w", err)
	}
	settled := make(map[string]*protocol.Session, len(prior))
	for _, s := range prior {
		if !s.Phase.Terminal() {
			continue
		}
		if s.Outcome == protocol.OutcomeAgreed {
			log.Info("resuming persisted deal", "session", s.ID, "vendor", s.VendorPhone)
			return &negotiation.Result{Session: s}, nil
		}
		settled[s.VendorPhone] = s
	}

	var pending []discovery.Ranked
	for _, v := range vendors {
		if s, ok := settled[v.Phone]; ok {
			log.Debug("vendor already settled", "vendor", v.Phone, "outcome", s.Outcome)
			continue
		}
		pending = append(pending, v)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	engine := &negotiation.Engine{
		Dialer:      o.Dialer,
		Proposer:    o.Proposer,
		Tactics:     o.Tactics,
		Logger:      log,
		MaxRounds:   o.MaxRounds,
		DialRetries: o.DialRetries,
		Inactivity:  o.SessionTimeout,
	}
	ctl := &pool.Controller{Cap: o.MaxConcurrentCalls, Logger: log}

	results := make([]*negotiation.Result, len(pending))
	winner := ctl.Run(ctx, len(pending), func(ctx context.Context, i int) bool {
		v := pending[i]
		res := engine.Run(ctx, t.ID, v.Phone, v.Name, t.Request, marketRate)
		results[i] = res
		o.settle(v.Phone, res, log)
		return res.Session.Outcome == protocol.OutcomeAgreed
	})

	// A shutdown mid-negotiation leaves the trip active for the next sweep.
	if winner < 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	return results[winner], nil
}

// settle persists the session audit record and folds the call into the
// vendor's history. Persistence failures never alter the call outcome.
func (o *Orchestrator) settle(vendorPhone string, res *negotiation.Result, log *slog.Logger) {
	o.withRetry(log, "save session", func() error {
		return o.Store.SaveSession(res.Session)
	})

	if res.Blacklist {
		o.withRetry(log, "blacklist vendor", func() error {
			reason := "fraud signal"
			if n := len(res.Session.SafetyFlags); n > 0 {
				reason = res.Session.SafetyFlags[n-1]
			}
			return o.Store.BlacklistVendor(vendorPhone, reason)
		})
	}
	if res.Answered {
		success := res.Session.Outcome == protocol.OutcomeAgreed
		o.withRetry(log, "record call result", func() error {
			return o.Store.RecordCallResult(vendorPhone, success, res.DiscountPct)
		})
	}
}

// confirm re-validates the winning session, finalizes the deal and
// completes the trip.
func (o *Orchestrator) confirm(ctx context.Context, t *protocol.TripState, res *negotiation.Result, log *slog.Logger) error {
	o.setPhase(t, protocol.TripConfirming, log)

	s := res.Session
	if s.Phase != protocol.PhaseClosing || s.Outcome != protocol.OutcomeAgreed {
		log.Warn("winning session not agreed", "session", s.ID, "phase", s.Phase, "outcome", s.Outcome)
		return o.fail(ctx, t, "winning session no longer agreed", log)
	}
	t.Deal = &protocol.Deal{
		SessionID:   s.ID,
		VendorPhone: s.VendorPhone,
		VendorName:  s.VendorName,
		FinalPrice:  s.FinalPrice,
		StretchFlag: s.StretchFlag,
	}
	t.Phase = protocol.TripComplete
	if err := o.Store.SaveTrip(t); err != nil {
		return fmt.Errorf("complete trip: %w", err)
	}
	log.Info("trip complete", "vendor", s.VendorPhone, "price", s.FinalPrice, "stretch", s.StretchFlag)

	if err := o.notifier().TripResolved(ctx, t); err != nil {
		log.Warn("notification failed", "error", err)
	}
	return nil
}

// fail terminates the trip with a reason.
func (o *Orchestrator) fail(ctx context.Context, t *protocol.TripState, reason string, log *slog.Logger) error {
	t.Phase = protocol.TripFailed
	t.FailureReason = reason
	if err := o.Store.SaveTrip(t); err != nil {
		return fmt.Errorf("fail trip: %w", err)
	}
	log.Info("trip failed", "reason", reason)

	if err := o.notifier().TripResolved(ctx, t); err != nil {
		log.Warn("notification failed", "error", err)
	}
	return nil
}

// setPhase advances the trip marker. A marker that fails to persist is only
// a resume hint, so the pipeline keeps going.
func (o *Orchestrator) setPhase(t *protocol.TripState, phase protocol.TripPhase, log *slog.Logger) {
	t.Phase = phase
	if err := o.Store.UpdateTripPhase(t.ID, phase); err != nil {
		log.Warn("phase update failed", "phase", phase, "error", err)
	}
	log.Info("trip phase", "phase", phase)
}

func (o *Orchestrator) withRetry(log *slog.Logger, op string, fn func() error) {
	var err error
	for i := 0; i < persistRetries; i++ {
		if err = fn(); err == nil {
			return
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	log.Error("persistence gave up", "op", op, "error", err)
}
